package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := New(context.Background(), mr.Addr(), nil)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, Ping(context.Background(), client))
}

func TestNewToleratesUnreachableServer(t *testing.T) {
	client := New(context.Background(), "127.0.0.1:1", nil)
	t.Cleanup(func() { _ = client.Close() })

	require.NotNil(t, client)
	require.Error(t, Ping(context.Background(), client))
}
