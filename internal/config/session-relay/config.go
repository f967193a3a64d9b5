package session_relay_config

import (
	"time"

	"github.com/NordCoder/posecoach/internal/obs"
	pginfra "github.com/NordCoder/posecoach/internal/repository/postgres"
)

type Kafka struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int      `mapstructure:"partitions"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	// PublishRate caps messages per second across workers. Zero disables the cap.
	PublishRate  float64 `mapstructure:"publish_rate"`
	PublishBurst int     `mapstructure:"publish_burst"`
}

type Server struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:   lc.Level,
		Pretty:  lc.Pretty,
		Service: "posecoach/session-relay",
	}
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	Kafka  Kafka          `mapstructure:"kafka"`
	Outbox Outbox         `mapstructure:"outbox"`
	Server Server         `mapstructure:"server"`
	OTEL   OTEL           `mapstructure:"otel"`
	Log    Log            `mapstructure:"log"`
}
