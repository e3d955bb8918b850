package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/policycache/cachekey"
	"github.com/jonwraymond/policycache/memo"
	"github.com/jonwraymond/policycache/store"
)

// Sentinel errors for policy evaluation.
var (
	// ErrNoStore is returned when a rule declared externally cacheable
	// is invoked on an evaluator with no backing store configured.
	ErrNoStore = errors.New("policy: no cache store configured")

	// ErrUnknownRule is returned when a rule name is not declared on the
	// policy type.
	ErrUnknownRule = errors.New("policy: unknown rule")

	// ErrMissingContext is returned when the supplied authorization
	// context lacks an object the policy type declares.
	ErrMissingContext = errors.New("policy: missing context object")
)

// RuleFunc is one named predicate on a policy type. It must distinguish
// denial (false, nil) from failure (err != nil); failures are never
// cached at any tier.
type RuleFunc func(ctx context.Context, record any, authctx map[string]any) (bool, error)

// Spec declares a policy type.
type Spec struct {
	// Name identifies the policy type in cache keys, e.g. "PostPolicy".
	Name string

	// Context lists the authorization context names this policy consumes,
	// in declared order. Order is significant: it fixes the context
	// segment of every cache key.
	Context []string

	// Rules maps rule names to predicates.
	Rules map[string]RuleFunc

	// Cached declares which rules may be written to the external store,
	// with per-rule store options. Rules absent from this map never
	// touch the store and rely on the in-process tiers only.
	Cached map[string]store.Options

	// Keys overrides key composition for this policy type. Nil uses the
	// evaluator's builder.
	Keys *cachekey.Builder
}

// Cacheable reports whether rule is declared externally cacheable.
func (s *Spec) Cacheable(rule string) (store.Options, bool) {
	opts, ok := s.Cached[rule]
	return opts, ok
}

// orderedContexts extracts the declared context objects from authctx in
// declared order.
func (s *Spec) orderedContexts(authctx map[string]any) ([]any, error) {
	contexts := make([]any, 0, len(s.Context))
	for _, name := range s.Context {
		obj, ok := authctx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %q", ErrMissingContext, s.Name, name)
		}
		contexts = append(contexts, obj)
	}
	return contexts, nil
}

// Instance pairs a record with an authorization context and carries the
// per-instance rule memo. Instances are owned by whichever scope created
// them and are never shared across scopes.
type Instance struct {
	spec    *Spec
	record  any
	authctx map[string]any
	memo    *memo.Memo
}

// NewInstance constructs a policy instance directly, for bare hosts that
// evaluate rules without an Evaluator.
func NewInstance(spec *Spec, record any, authctx map[string]any) *Instance {
	return &Instance{
		spec:    spec,
		record:  record,
		authctx: authctx,
		memo:    memo.New(),
	}
}

// Record returns the record this instance authorizes.
func (i *Instance) Record() any {
	return i.record
}

// Apply evaluates rule on the instance, memoizing successful results for
// the instance lifetime. It runs the bare predicate with no scope or
// store involvement.
func (i *Instance) Apply(ctx context.Context, rule string) (bool, error) {
	fn, ok := i.spec.Rules[rule]
	if !ok {
		return false, fmt.Errorf("%w: %s.%s", ErrUnknownRule, i.spec.Name, rule)
	}
	return i.memo.Do(rule, func() (bool, error) {
		return fn(ctx, i.record, i.authctx)
	})
}
