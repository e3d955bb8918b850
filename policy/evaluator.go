package policy

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/jonwraymond/policycache/cachekey"
	"github.com/jonwraymond/policycache/identity"
	"github.com/jonwraymond/policycache/scope"
	"github.com/jonwraymond/policycache/store"
)

// Evaluator runs policy rules through the cache tiers.
//
// Contract:
// - Concurrency: an Evaluator is immutable after New and safe to share
//   across execution units; per-unit isolation comes from the scope bound
//   to each context.
// - Errors: every tier is transparent — a failure at any layer surfaces
//   exactly as if caching were absent, and nothing is recorded on
//   failure. A denial is (false, nil), never an error.
type Evaluator struct {
	store   store.Store
	keys    *cachekey.Builder
	logger  *zap.Logger
	meter   metric.Meter
	metrics metrics

	memoizeInstances bool
	memoizeResults   bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStore sets the process-wide backing store. Without one, rules
// declared cacheable fail with ErrNoStore.
func WithStore(s store.Store) Option {
	return func(e *Evaluator) {
		e.store = s
	}
}

// WithKeys sets the default key builder. A Spec's own builder, when set,
// takes precedence.
func WithKeys(b *cachekey.Builder) Option {
	return func(e *Evaluator) {
		e.keys = b
	}
}

// WithLogger attaches a logger. The evaluator logs at debug level only.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMeter enables OpenTelemetry cache hit/miss counters.
func WithMeter(m metric.Meter) Option {
	return func(e *Evaluator) {
		e.meter = m
	}
}

// WithInstanceMemo toggles scope-held instance reuse.
func WithInstanceMemo(enabled bool) Option {
	return func(e *Evaluator) {
		e.memoizeInstances = enabled
	}
}

// WithResultMemo toggles scope-held result reuse.
func WithResultMemo(enabled bool) Option {
	return func(e *Evaluator) {
		e.memoizeResults = enabled
	}
}

// New creates an Evaluator. Both scope memoization tiers default to on;
// they degrade to no-ops for contexts with no bound scope, so a bare host
// needs no configuration at all.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		keys:             cachekey.NewBuilder(),
		logger:           zap.NewNop(),
		metrics:          noopMetrics{},
		memoizeInstances: true,
		memoizeResults:   true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.meter != nil {
		m, err := newMetrics(e.meter)
		if err != nil {
			return nil, fmt.Errorf("policy: failed to create metrics: %w", err)
		}
		e.metrics = m
	}
	return e, nil
}

// Authorize evaluates rule on spec for record under authctx, consulting
// the cache tiers outermost first: scope instance reuse, instance memo,
// scope result reuse, then the external store for rules declared
// cacheable.
func (e *Evaluator) Authorize(ctx context.Context, spec *Spec, record any, rule string, authctx map[string]any) (bool, error) {
	fn, ok := spec.Rules[rule]
	if !ok {
		return false, fmt.Errorf("%w: %s.%s", ErrUnknownRule, spec.Name, rule)
	}

	storeOpts, cacheable := spec.Cacheable(rule)
	if cacheable && e.store == nil {
		return false, fmt.Errorf("%w: rule %s.%s is declared cacheable", ErrNoStore, spec.Name, rule)
	}

	contexts, err := spec.orderedContexts(authctx)
	if err != nil {
		return false, err
	}

	sc := scope.FromContext(ctx)

	keys := spec.Keys
	if keys == nil {
		keys = e.keys
	}

	// Identities feed every key-addressed tier; resolve them once, and
	// only when some tier will use them, so identity-less objects still
	// authorize on the bare path.
	var recordID string
	var contextIDs []string
	if cacheable || (sc != nil && (e.memoizeInstances || e.memoizeResults)) {
		if recordID, err = identity.Resolve(record); err != nil {
			return false, err
		}
		contextIDs = make([]string, 0, len(contexts))
		for _, obj := range contexts {
			id, err := identity.Resolve(obj)
			if err != nil {
				return false, err
			}
			contextIDs = append(contextIDs, id)
		}
	}

	// Tier: instance reuse.
	inst := e.instanceFor(ctx, sc, spec, record, authctx, recordID, contextIDs)

	// Tier: per-instance memo, wrapping everything below.
	if result, ok := inst.memo.Cached(rule); ok {
		e.metrics.RecordLookup(ctx, spec.Name, tierMemo, true)
		return result, nil
	}
	e.metrics.RecordLookup(ctx, spec.Name, tierMemo, false)

	result, err := inst.memo.Do(rule, func() (bool, error) {
		var fullKey string
		if cacheable || (sc != nil && e.memoizeResults) {
			var err error
			fullKey, err = keys.Compose(spec.Name, rule, contextIDs, recordID)
			if err != nil {
				return false, err
			}
		}

		// Tier: results shared across evaluations in the scope.
		if sc != nil && e.memoizeResults {
			if result, ok := sc.CachedResult(fullKey); ok {
				e.metrics.RecordLookup(ctx, spec.Name, tierResult, true)
				return result, nil
			}
			e.metrics.RecordLookup(ctx, spec.Name, tierResult, false)
		}

		result, err := e.evaluate(ctx, spec, fn, record, authctx, fullKey, storeOpts, cacheable)
		if err != nil {
			return false, err
		}

		if sc != nil && e.memoizeResults {
			sc.StoreResult(fullKey, result)
		}
		return result, nil
	})
	if err != nil {
		return false, err
	}

	fields := []zap.Field{
		zap.String("policy", spec.Name),
		zap.String("rule", rule),
		zap.Bool("allowed", result),
	}
	if sc != nil {
		fields = append(fields, zap.String("scope", sc.ID()))
	}
	e.logger.Debug("rule evaluated", fields...)

	return result, nil
}

// instanceFor returns the scope-held instance for the logical policy, or
// a fresh one when instance memoization is off or no scope is bound.
func (e *Evaluator) instanceFor(ctx context.Context, sc *scope.Scope, spec *Spec, record any, authctx map[string]any, recordID string, contextIDs []string) *Instance {
	if sc == nil || !e.memoizeInstances {
		return NewInstance(spec, record, authctx)
	}

	key := scope.InstanceKey{
		Record:   recordID,
		Contexts: strings.Join(contextIDs, cachekey.Separator),
		Policy:   spec.Name,
	}
	created := false
	inst := sc.GetOrCreate(key, func() any {
		created = true
		return NewInstance(spec, record, authctx)
	})
	e.metrics.RecordLookup(ctx, spec.Name, tierInstance, !created)
	return inst.(*Instance)
}

// evaluate runs the predicate, through the external store for cacheable
// rules. Only a value returned from a completed predicate is stored.
func (e *Evaluator) evaluate(ctx context.Context, spec *Spec, fn RuleFunc, record any, authctx map[string]any, fullKey string, opts store.Options, cacheable bool) (bool, error) {
	if !cacheable {
		return fn(ctx, record, authctx)
	}

	computed := false
	value, err := e.store.Fetch(ctx, fullKey, opts, func(cctx context.Context) (any, error) {
		computed = true
		result, err := fn(cctx, record, authctx)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return false, err
	}
	e.metrics.RecordLookup(ctx, spec.Name, tierStore, !computed)

	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("policy: cached value for %q is not a boolean: %T", fullKey, value)
	}
	return result, nil
}
