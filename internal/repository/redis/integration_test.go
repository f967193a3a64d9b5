//go:build integration

package redis

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// IT_REDIS_ADDR=localhost:6379 go test -tags integration ./internal/repository/redis/
func TestIT_LimiterAgainstRedis(t *testing.T) {
	addr := os.Getenv("IT_REDIS_ADDR")
	if addr == "" {
		t.Skip("IT_REDIS_ADDR is not set")
	}
	c, err := NewClient(t.Context(), Config{Addr: addr, DialTimeout: time.Second, ReadTimeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })

	l := NewLimiter(c, "posecoach:it:"+uuid.NewString()+":")
	for i := range 3 {
		ok, _, err := l.Allow(t.Context(), "auth:10.0.0.1", 3, 300*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok, "hit %d", i+1)
	}
	ok, retry, err := l.Allow(t.Context(), "auth:10.0.0.1", 3, 300*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, retry, time.Duration(0))
	require.LessOrEqual(t, retry, 300*time.Millisecond)

	ok, _, err = l.Allow(t.Context(), "auth:10.0.0.2", 3, 300*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok, "keys are independent")

	require.Eventually(t, func() bool {
		ok, _, err := l.Allow(t.Context(), "auth:10.0.0.1", 3, 300*time.Millisecond)
		return err == nil && ok
	}, 3*time.Second, 100*time.Millisecond)
}
