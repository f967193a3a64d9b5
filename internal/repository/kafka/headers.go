package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "posecoach_kafka_messages_total",
	Help: "Kafka messages by topic, direction (produce|consume) and result.",
}, []string{"topic", "direction", "result"})

func countMessage(topic, direction string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	messagesTotal.WithLabelValues(topic, direction, result).Inc()
}

// headerCarrier adapts message headers to the otel TextMapCarrier, so trace
// context travels from the relay to live subscribers.
type headerCarrier struct {
	hs *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.hs {
		if h.Key == key {
			(*c.hs)[i].Value = []byte(value)
			return
		}
	}
	*c.hs = append(*c.hs, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(*c.hs))
	for i, h := range *c.hs {
		keys[i] = h.Key
	}
	return keys
}
