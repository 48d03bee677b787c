package observability

import (
	"context"

	"leaderboard/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentedLimiter counts admission decisions made by a ratelimit.Limiter.
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	scope     string
	decisions metric.Int64Counter
}

// NewInstrumentedLimiter wraps inner. scope distinguishes limiters in the
// exported series, e.g. "submit" or "api".
func NewInstrumentedLimiter(inner ratelimit.Limiter, scope string) (*InstrumentedLimiter, error) {
	meter := otel.Meter("leaderboard/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit admission decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		scope:     scope,
		decisions: decisions,
	}, nil
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)

// Allow delegates to the wrapped limiter and records the outcome. Keys are
// client identifiers and are never used as metric attributes.
func (l *InstrumentedLimiter) Allow(key string) (bool, ratelimit.Info) {
	allowed, info := l.inner.Allow(key)

	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	l.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("scope", l.scope),
		attribute.String("outcome", outcome),
	))

	return allowed, info
}

func (l *InstrumentedLimiter) Close() {
	l.inner.Close()
}
