package session_relay_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "posecoach.sessions.recorded", cfg.Kafka.Topic)
	assert.Equal(t, []string{"localhost:9094"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Outbox.Workers)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, time.Second, cfg.Outbox.WaitTime)
	assert.Equal(t, time.Minute, cfg.Outbox.InProgressTTL)
	assert.InDelta(t, 200.0, cfg.Outbox.PublishRate, 0.001)
	assert.Equal(t, ":8083", cfg.Server.MetricsAddr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
outbox:
  workers: 5
  wait_time: 250ms
kafka:
  topic: custom.topic
`), 0o600))
	t.Setenv("OUTBOX_BATCH_SIZE", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Outbox.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.WaitTime)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, "custom.topic", cfg.Kafka.Topic)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("OUTBOX_PUBLISH_RATE", "-1")
	_, err = Load("")
	require.Error(t, err)
}
