package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	// MaxWait bounds how long EnsureTopic waits for every partition to get a leader.
	MaxWait time.Duration
}

// EnsureTopic creates spec.Name through the cluster controller unless it
// already exists, then waits until all of its partitions have a leader.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("ensure topic: no brokers")
	}
	if log == nil {
		log = zap.NewNop()
	}
	spec.NumPartitions = max(spec.NumPartitions, 1)
	spec.ReplicationFactor = max(spec.ReplicationFactor, 1)
	if spec.MaxWait <= 0 {
		spec.MaxWait = 5 * time.Second
	}
	log = log.With(zap.String("topic", spec.Name))

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	switch {
	case errors.Is(err, kafka.TopicAlreadyExists):
		log.Debug("topic exists")
	case err != nil:
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	default:
		log.Info("topic created", zap.Int("partitions", spec.NumPartitions))
	}

	return waitLeaders(ctx, conn, spec, log)
}

func waitLeaders(ctx context.Context, conn *kafka.Conn, spec TopicSpec, log *zap.Logger) error {
	wctx, cancel := context.WithTimeout(ctx, spec.MaxWait)
	defer cancel()

	backoff := 100 * time.Millisecond
	for {
		ps, err := conn.ReadPartitions(spec.Name)
		if err == nil && len(ps) > 0 && allHaveLeader(ps) {
			log.Info("topic ready", zap.Int("partitions", len(ps)))
			return nil
		}
		select {
		case <-wctx.Done():
			return fmt.Errorf("topic %s not ready after %s", spec.Name, spec.MaxWait)
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Second)
	}
}

func allHaveLeader(ps []kafka.Partition) bool {
	for _, p := range ps {
		if p.Leader.ID < 0 {
			return false
		}
	}
	return true
}
