package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

const (
	cacheVersionKey = "dashboard:reports:version"
	// BumpChannel carries cache version bumps between instances.
	BumpChannel = "dashboard.reports.bump"

	// versionMemoTTL bounds how long a listening instance trusts its local version when
	// a bump announcement is lost.
	versionMemoTTL = 30 * time.Second
)

// CachedFetcher keeps report results in Redis under a global version and collapses
// identical concurrent fetches into one backend call.
type CachedFetcher struct {
	next   dashboard.Fetcher
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	listening atomic.Bool
	memoMu    sync.Mutex
	memoVer   int64
	memoUntil time.Time
}

// NewCachedFetcher wraps next. A nil client disables caching but keeps the in-flight
// dedupe.
func NewCachedFetcher(next dashboard.Fetcher, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedFetcher{next: next, client: client, ttl: ttl, logger: logger}
}

// Fetch implements dashboard.Fetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	key, err := c.buildKey(ctx, reportName, strconv.FormatInt(officeID, 10))
	if err != nil {
		c.log().Warn("report cache version unavailable", slog.String("report", reportName), slog.Any("error", err))
		key = ""
	}

	if key != "" {
		if cached, ok := c.lookup(ctx, key); ok {
			return cached, nil
		}
	}

	flightKey := reportName + ":" + strconv.FormatInt(officeID, 10)
	resultChan := c.group.DoChan(flightKey, func() (interface{}, error) {
		// Detached from the first caller so a cancelled caller does not fail the others.
		fetchCtx := context.WithoutCancel(ctx)
		res, err := c.next.Fetch(fetchCtx, reportName, officeID)
		if err != nil {
			return nil, err
		}
		if key != "" {
			c.store(fetchCtx, key, res)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-resultChan:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Val.(*dashboard.RawResult), nil
	}
}

// Version returns the current cache version, initialising it when missing. While the
// instance listens for bumps the version is served from memory.
func (c *CachedFetcher) Version(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	if ver, ok := c.memoized(); ok {
		return ver, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		ver, err = c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	c.remember(ver)
	return ver, nil
}

// Bump invalidates every cached report by moving to a new version and announcing it.
func (c *CachedFetcher) Bump(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	c.remember(ver)
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps until ctx ends. While subscribed,
// Version answers from a local copy that each announced bump advances, so fetches skip
// the version read against Redis. It returns once the subscription is confirmed.
func (c *CachedFetcher) ListenForInvalidation(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("report: subscribe %s: %w", BumpChannel, err)
	}
	c.listening.Store(true)
	go func() {
		defer func() {
			c.listening.Store(false)
			c.forget()
			_ = pubsub.Close()
		}()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				c.remember(ver)
				c.log().Debug("report cache version bumped", slog.Int64("version", ver))
			}
		}
	}()
	return nil
}

func (c *CachedFetcher) memoized() (int64, bool) {
	if !c.listening.Load() {
		return 0, false
	}
	c.memoMu.Lock()
	defer c.memoMu.Unlock()
	if c.memoVer <= 0 || time.Now().After(c.memoUntil) {
		return 0, false
	}
	return c.memoVer, true
}

// remember advances the local version; versions never move backwards.
func (c *CachedFetcher) remember(ver int64) {
	c.memoMu.Lock()
	defer c.memoMu.Unlock()
	if ver >= c.memoVer {
		c.memoVer = ver
		c.memoUntil = time.Now().Add(versionMemoTTL)
	}
}

func (c *CachedFetcher) forget() {
	c.memoMu.Lock()
	c.memoVer = 0
	c.memoUntil = time.Time{}
	c.memoMu.Unlock()
}

func (c *CachedFetcher) buildKey(ctx context.Context, parts ...string) (string, error) {
	if c.client == nil {
		return "", nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dashboard:report:%s:%d", strings.Join(parts, ":"), ver), nil
}

func (c *CachedFetcher) lookup(ctx context.Context, key string) (*dashboard.RawResult, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log().Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var res dashboard.RawResult
	if err := json.Unmarshal(payload, &res); err != nil {
		c.log().Warn("report cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return &res, true
}

func (c *CachedFetcher) store(ctx context.Context, key string, res *dashboard.RawResult) {
	if res == nil {
		res = &dashboard.RawResult{}
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log().Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *CachedFetcher) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
