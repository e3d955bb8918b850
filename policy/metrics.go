package policy

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache tier names used in metric attributes.
const (
	tierInstance = "instance"
	tierMemo     = "memo"
	tierResult   = "result"
	tierStore    = "store"
)

// metrics records cache lookup outcomes per tier.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type metrics interface {
	RecordLookup(ctx context.Context, policyName, tier string, hit bool)
}

// otelMetrics is the OpenTelemetry-backed implementation.
type otelMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*otelMetrics, error) {
	hits, err := meter.Int64Counter(
		"authz.cache.hits",
		metric.WithDescription("Rule lookups served from a cache tier"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"authz.cache.misses",
		metric.WithDescription("Rule lookups that fell through a cache tier"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{hits: hits, misses: misses}, nil
}

func (m *otelMetrics) RecordLookup(ctx context.Context, policyName, tier string, hit bool) {
	opt := metric.WithAttributes(
		attribute.String("policy", policyName),
		attribute.String("tier", tier),
	)
	if hit {
		m.hits.Add(ctx, 1, opt)
	} else {
		m.misses.Add(ctx, 1, opt)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, string, string, bool) {}
