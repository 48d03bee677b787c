package observability

import (
	"context"
	"time"

	"leaderboard/internal/models"
	"leaderboard/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage decorates a storage.Storage with a span, a latency
// histogram and an error counter per call. Submit additionally counts
// entries that reached the public top.
type InstrumentedStorage struct {
	inner    storage.Storage
	backend  attribute.KeyValue
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	madeTop  metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage wraps inner. backend names the storage type in
// exported series ("json", "sqlite", ...).
func NewInstrumentedStorage(inner storage.Storage, backend string) (*InstrumentedStorage, error) {
	meter := otel.Meter("leaderboard/storage")

	duration, err := meter.Float64Histogram(
		"leaderboard.storage.duration",
		metric.WithDescription("Duration of leaderboard storage operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"leaderboard.storage.errors",
		metric.WithDescription("Leaderboard storage operations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	madeTop, err := meter.Int64Counter(
		"leaderboard.submissions.made_top",
		metric.WithDescription("Persisted submissions that entered the public top"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		backend:  attribute.String("backend", backend),
		tracer:   otel.Tracer("leaderboard/storage"),
		duration: duration,
		errors:   errCounter,
		madeTop:  madeTop,
	}, nil
}

// observe runs fn inside a span named after op and records its outcome.
func observe[T any](ctx context.Context, s *InstrumentedStorage, op string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := s.tracer.Start(ctx, "storage."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, s.backend)...),
	)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)

	opAttrs := metric.WithAttributes(attribute.String("operation", op), s.backend)
	s.duration.Record(ctx, time.Since(start).Seconds(), opAttrs)

	if err != nil {
		s.errors.Add(ctx, 1, opAttrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result, err
}

func (s *InstrumentedStorage) Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error) {
	return observe(ctx, s, "Submit", func(ctx context.Context) (*models.SubmitResult, error) {
		result, err := s.inner.Submit(ctx, name, score)
		if err == nil && result != nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("made_top", result.MadeTop))
			if result.MadeTop {
				s.madeTop.Add(ctx, 1, metric.WithAttributes(s.backend))
			}
		}
		return result, err
	}, attribute.Float64("score", score))
}

func (s *InstrumentedStorage) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	return observe(ctx, s, "Top", func(ctx context.Context) ([]models.ScoreEntry, error) {
		return s.inner.Top(ctx, limit)
	}, attribute.Int("limit", limit))
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	_, err := observe(ctx, s, "Ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.inner.Ping(ctx)
	})
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
