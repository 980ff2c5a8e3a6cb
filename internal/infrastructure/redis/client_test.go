package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMini(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestClient_Ping_OK(t *testing.T) {
	_, c := newMini(t)
	require.NoError(t, c.Ping(context.Background()))
}

func TestClient_Ping_FailsFast(t *testing.T) {
	c := New("127.0.0.1:1", "", 0) // guaranteed unreachable
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, c.Ping(ctx))
}

func TestClient_Close_Idempotent(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)

	require.NoError(t, c.Close())
	// call twice should not panic
	_ = c.Close()
}
