package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

type countingFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	res   *dashboard.RawResult
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.res, f.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedFetcherServesFromRedis(t *testing.T) {
	_, client := newRedis(t)
	next := &countingFetcher{res: &dashboard.RawResult{Data: []dashboard.Row{{"_", "3", "_", "10"}}}}
	cached := NewCachedFetcher(next, client, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.Fetch(ctx, "Client-Trends-By-Week", 1)
	require.NoError(t, err)
	second, err := cached.Fetch(ctx, "Client-Trends-By-Week", 1)
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first.Data[0][3], second.Data[0][3])

	_, err = cached.Fetch(ctx, "Client-Trends-By-Week", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedFetcherBumpInvalidates(t *testing.T) {
	_, client := newRedis(t)
	next := &countingFetcher{res: &dashboard.RawResult{}}
	cached := NewCachedFetcher(next, client, time.Minute, nil)
	ctx := context.Background()

	_, err := cached.Fetch(ctx, "Demand-Vs-Collection", 1)
	require.NoError(t, err)
	ver, err := cached.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	require.NoError(t, cached.Bump(ctx))
	ver, err = cached.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)

	_, err = cached.Fetch(ctx, "Demand-Vs-Collection", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedFetcherDoesNotCacheErrors(t *testing.T) {
	_, client := newRedis(t)
	boom := errors.New("backend down")
	next := &countingFetcher{err: boom}
	cached := NewCachedFetcher(next, client, time.Minute, nil)

	_, err := cached.Fetch(context.Background(), "Loan-Trends-By-Day", 1)
	require.ErrorIs(t, err, boom)
	_, err = cached.Fetch(context.Background(), "Loan-Trends-By-Day", 1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedFetcherCollapsesConcurrentCalls(t *testing.T) {
	next := &countingFetcher{gate: make(chan struct{}), res: &dashboard.RawResult{}}
	cached := NewCachedFetcher(next, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Fetch(context.Background(), "Loan-Trends-By-Month", 1)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedFetcherReturnsOnCallerCancel(t *testing.T) {
	next := &countingFetcher{gate: make(chan struct{}), res: &dashboard.RawResult{}}
	defer close(next.gate)
	cached := NewCachedFetcher(next, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cached.Fetch(ctx, "Loan-Trends-By-Month", 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCachedFetcherToleratesRedisOutage(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer func() { _ = client.Close() }()
	next := &countingFetcher{res: &dashboard.RawResult{}}
	cached := NewCachedFetcher(next, client, time.Minute, nil)

	_, err := cached.Fetch(context.Background(), "Client-Trends-By-Day", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestListeningInstanceFollowsBumpsFromMemory(t *testing.T) {
	mr, client := newRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	next := &countingFetcher{res: &dashboard.RawResult{Data: []dashboard.Row{{"_", "3", "_", "10"}}}}
	listener := NewCachedFetcher(next, client, time.Minute, nil)
	require.NoError(t, listener.ListenForInvalidation(ctx))

	_, err := listener.Fetch(ctx, "Client-Trends-By-Week", 1)
	require.NoError(t, err)

	// A silent change in Redis is not seen while the local version is fresh.
	require.NoError(t, mr.Set(cacheVersionKey, "7"))
	_, err = listener.Fetch(ctx, "Client-Trends-By-Week", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.calls.Load())

	// An announced bump from another instance is.
	other := NewCachedFetcher(nil, client, time.Minute, nil)
	require.NoError(t, other.Bump(ctx))
	require.Eventually(t, func() bool {
		ver, ok := listener.memoized()
		return ok && ver == 8
	}, time.Second, 5*time.Millisecond)

	_, err = listener.Fetch(ctx, "Client-Trends-By-Week", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestListenerStopsWithContext(t *testing.T) {
	_, client := newRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cached := NewCachedFetcher(&countingFetcher{res: &dashboard.RawResult{}}, client, time.Minute, nil)
	require.NoError(t, cached.ListenForInvalidation(ctx))

	_, err := cached.Version(ctx)
	require.NoError(t, err)
	_, ok := cached.memoized()
	require.True(t, ok)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := cached.memoized()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestListenForInvalidationFailsWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer func() { _ = client.Close() }()
	cached := NewCachedFetcher(nil, client, time.Minute, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, cached.ListenForInvalidation(ctx))
	_, ok := cached.memoized()
	assert.False(t, ok)
}
