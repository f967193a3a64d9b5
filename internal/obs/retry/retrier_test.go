package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, Policy{Name: "test_success", Attempts: 5, Backoff: noWait{}})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	boom := errors.New("bad payload")
	exhausted := false
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(boom)
	}, Policy{Name: "test_permanent", Attempts: 5, Backoff: noWait{}, OnExhaust: func(error) { exhausted = true }})

	require.ErrorIs(t, err, boom)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
	assert.True(t, exhausted)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	}, Policy{Name: "test_exhaust", Attempts: 4, Backoff: noWait{}})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("down")
	}, Policy{Name: "test_ctx", Attempts: 5, Backoff: ExpoJitter{Base: time.Hour}})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestKafkaPolicySkipsCancellation(t *testing.T) {
	p := DefaultKafkaPolicy(nil)
	assert.False(t, p.Retryable(context.Canceled))
	assert.True(t, p.Retryable(errors.New("leader not available")))
}

func TestExpoJitterCapped(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 4 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 4*time.Second, b.Next(5))
}
