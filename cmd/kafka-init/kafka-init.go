package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NordCoder/posecoach/internal/obs"
	kafkarepo "github.com/NordCoder/posecoach/internal/repository/kafka"
	"go.uber.org/zap"
)

const defaultTopics = "posecoach.sessions.recorded"

func main() {
	l, err := obs.NewLogger(obs.LogConfig{Level: env("LOG_LEVEL", "info"), Service: "posecoach/kafka-init"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	brokers := strings.Split(env("KAFKA_BROKERS", "kafka:9092"), ",")
	topics := strings.Split(env("KAFKA_TOPICS", defaultTopics), ",")
	partitions := envInt("KAFKA_PARTITIONS", 1)
	rf := envInt("KAFKA_RF", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		err := kafkarepo.EnsureTopic(ctx, brokers, kafkarepo.TopicSpec{
			Name:              t,
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			MaxWait:           30 * time.Second,
		}, l)
		if err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("topics", topics))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
