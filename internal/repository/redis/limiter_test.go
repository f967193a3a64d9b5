package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	hits    map[string]int64
	expires map[string]time.Duration
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{hits: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *goredis.IntCmd {
	f.hits[key]++
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetVal(f.hits[key])
	return cmd
}

func (f *fakeCounter) PExpire(ctx context.Context, key string, d time.Duration) *goredis.BoolCmd {
	f.expires[key] = d
	cmd := goredis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeCounter) PTTL(ctx context.Context, key string) *goredis.DurationCmd {
	cmd := goredis.NewDurationCmd(ctx, time.Millisecond)
	cmd.SetVal(f.expires[key])
	return cmd
}

func TestLimiterFixedWindow(t *testing.T) {
	fc := newFakeCounter()
	l := &Limiter{c: fc, prefix: "rl:"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "hit %d", i+1)
	}
	ok, retry, err := l.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, time.Minute, retry)
	require.Equal(t, time.Minute, fc.expires["rl:login:10.0.0.1"])

	ok, _, err = l.Allow(ctx, "login:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiterNotConfigured(t *testing.T) {
	l := NewLimiter(nil, "rl:")
	_, _, err := l.Allow(context.Background(), "k", 1, time.Second)
	require.ErrorIs(t, err, errNotConfigured)
}
