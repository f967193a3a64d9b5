package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Options struct {
	Workers       int
	BatchSize     int
	WaitTime      time.Duration
	InProgressTTL time.Duration
}

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posecoach_outbox_picked_total", Help: "Messages picked into processing.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posecoach_outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posecoach_outbox_processed_err_total", Help: "Handler errors.",
	})
	mDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posecoach_outbox_dropped_total", Help: "Messages that can never be delivered.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "posecoach_outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "posecoach_outbox_last_batch_size", Help: "Size of last picked batch.",
	})
)

// Runner polls the outbox and hands each message to the handler for its kind.
// Failed messages stay IN_PROGRESS and are picked again once InProgressTTL passes.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	opts     Options
	wg       sync.WaitGroup
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = time.Second
	}
	if opts.InProgressTTL <= 0 {
		opts.InProgressTTL = time.Minute
	}
	return &Runner{log: log, repo: repo, dispatch: dispatch, opts: opts}
}

// Start launches the workers and returns. Use Wait to block until they exit.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
}

func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	r.log.Info("outbox worker started", zap.Int("worker", id), zap.Duration("wait", r.opts.WaitTime))

	ticker := time.NewTicker(r.opts.WaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox worker stop", zap.Int("worker", id))
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	t0 := time.Now()
	defer func() { mTickDur.Observe(time.Since(t0).Seconds()) }()

	tr := otel.Tracer("outbox.runner")
	prop := otel.GetTextMapPropagator()

	ctxSpan, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.opts.BatchSize),
		attribute.String("in_progress_ttl", r.opts.InProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctxSpan, r.opts.BatchSize, r.opts.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))

	done := make([]string, 0, len(messages))
	for _, m := range messages {
		parent := prop.Extract(ctx, propagation.MapCarrier{
			"traceparent": m.Traceparent,
			"tracestate":  m.Tracestate,
			"baggage":     m.Baggage,
		})
		msgCtx, msgSpan := tr.Start(parent, "outbox.dispatch",
			trace.WithAttributes(
				attribute.String("outbox.key", m.IdempotencyKey),
				attribute.String("outbox.kind", m.Kind.String()),
			),
		)
		log := obs.WithTrace(msgCtx, r.log).With(zap.String("key", m.IdempotencyKey), zap.Stringer("kind", m.Kind))

		handler, herr := r.dispatch(m.Kind)
		if herr != nil {
			msgSpan.RecordError(herr)
			mDropped.Inc()
			log.Error("no handler for kind, dropping", zap.Error(herr))
			done = append(done, m.IdempotencyKey)
			msgSpan.End()
			continue
		}

		if err := handler(msgCtx, m.Data); err != nil {
			msgSpan.RecordError(err)
			if retry.IsPermanent(err) {
				mDropped.Inc()
				log.Error("undeliverable message, dropping", zap.Error(err))
				done = append(done, m.IdempotencyKey)
			} else {
				mErr.Inc()
				log.Error("handler error", zap.Error(err))
			}
			msgSpan.End()
			continue
		}

		msgSpan.End()
		done = append(done, m.IdempotencyKey)
		mOk.Inc()
	}

	if err := r.repo.MarkSuccess(ctxSpan, done); err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("mark success error", zap.Error(err))
	}
}
