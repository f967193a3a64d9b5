package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posecoach_outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers, retries and throttling included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posecoach_outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// instrument wraps h with tracing, metrics, an optional publish-rate cap and
// the retry policy. A nil limiter means unthrottled.
func instrument(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy, lim *rate.Limiter) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	label := kind.String()
	if pol.Name == "" || pol.Name == "kafka" {
		pol.Name = "outbox_" + label
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := func() error {
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					return err
				}
			}
			return retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		}()
		outboxHandlerLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(label).Inc()
		}
		return err
	}
}

func MakeGlobalOutboxHandler(pub kafka.SessionEvents, pol retry.Policy, lim *rate.Limiter) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindSessionRecorded:
			base := func(ctx context.Context, data []byte) error {
				var p SessionRecordedPayload
				if err := json.Unmarshal(data, &p); err != nil {
					return retry.Permanent(fmt.Errorf("unmarshal session payload: %w", err))
				}
				return pub.PublishSessionRecorded(ctx, kafka.SessionRecorded{
					SessionID:  p.SessionID,
					Owner:      p.OwnerID,
					Exercise:   p.Exercise,
					Accuracy:   p.Accuracy,
					OccurredAt: p.OccurredAt,
				})
			}
			return instrument(kind, base, pol, lim), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
