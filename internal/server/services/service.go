// Package services contains server-side business logic: session tokens,
// reviewer invitations, the reviewer roster, the article review workflow
// and manuscript storage.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/logging"
	"github.com/hungtran3011/research-review-sub001/internal/server/metrics"
	"github.com/hungtran3011/research-review-sub001/internal/server/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hungtran3011/research-review-sub001/internal/server/services"

// base carries the ambient dependencies every service shares.
type base struct {
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option customizes a service.
type Option func(*base)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(module string, opts []Option) base {
	b := base{
		logger: logging.Nop(),
		tracer: telemetry.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With("module", module)
	return b
}

// startSpan opens a span for a service operation. The returned func ends it
// and records err on it.
func (b *base) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := b.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
