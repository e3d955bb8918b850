package cachekey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/policycache/identity"
)

// Caching-layer version. Bumping either component changes the default
// namespace, which makes every previously written key unreachable.
const (
	VersionMajor = 1
	VersionMinor = 0
)

// productPrefix is the fixed product tag of the default namespace.
const productPrefix = "acp"

// Separator joins the components of a full cache key.
const Separator = "/"

// MaxKeyLength is the maximum allowed length for a composed key.
const MaxKeyLength = 512

// Sentinel errors for key composition.
var (
	ErrInvalidKey = errors.New("cachekey: key is invalid")
	ErrKeyTooLong = errors.New("cachekey: key exceeds max length")
)

// DefaultNamespace returns the versioned default namespace, e.g. "acp:1.0".
func DefaultNamespace() string {
	return fmt.Sprintf("%s:%d.%d", productPrefix, VersionMajor, VersionMinor)
}

// Parts carries the resolved components of one key. A RuleKeyFunc override
// receives Parts and produces the final string.
type Parts struct {
	// Namespace is the active namespace, default or overridden.
	Namespace string

	// Contexts are the resolved context identities in declared order.
	Contexts []string

	// Record is the resolved record identity.
	Record string

	// Policy is the policy type name.
	Policy string

	// Rule is the rule name.
	Rule string
}

// Override points. Each replaces one composition step wholesale.
type (
	// NamespaceFunc supplies the namespace segment.
	NamespaceFunc func() string

	// JoinFunc joins resolved context identities into one segment.
	JoinFunc func(ids []string) string

	// RuleKeyFunc replaces the entire key format for a policy type.
	RuleKeyFunc func(p Parts) string
)

// Builder composes cache keys.
//
// Contract:
// - Determinism: identical inputs always yield an identical string.
// - Concurrency: safe for concurrent use; a Builder is immutable after
//   construction.
type Builder struct {
	namespace NamespaceFunc
	join      JoinFunc
	ruleKey   RuleKeyFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithNamespace fixes the namespace to a constant string. Hosts use this
// to take over versioning: changing the string invalidates the whole key
// space for policies built on this Builder.
func WithNamespace(ns string) Option {
	return WithNamespaceFunc(func() string { return ns })
}

// WithNamespaceFunc supplies the namespace dynamically.
func WithNamespaceFunc(fn NamespaceFunc) Option {
	return func(b *Builder) {
		b.namespace = fn
	}
}

// WithJoin overrides how context identities are joined.
func WithJoin(fn JoinFunc) Option {
	return func(b *Builder) {
		b.join = fn
	}
}

// WithRuleKey overrides the whole per-rule key format. Manual-invalidation
// strategies use this to produce predictable, greppable keys for pattern
// deletion.
func WithRuleKey(fn RuleKeyFunc) Option {
	return func(b *Builder) {
		b.ruleKey = fn
	}
}

// NewBuilder creates a Builder with the given overrides. With no options
// the builder produces namespace/contexts/record/policy/rule keys under
// the versioned default namespace.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Namespace returns the builder's active namespace.
func (b *Builder) Namespace() string {
	if b.namespace != nil {
		return b.namespace()
	}
	return DefaultNamespace()
}

// Build resolves identities for every context object in order and for the
// record, then composes the full key.
func (b *Builder) Build(policyName, rule string, contexts []any, record any) (string, error) {
	ids := make([]string, 0, len(contexts))
	for _, obj := range contexts {
		id, err := identity.Resolve(obj)
		if err != nil {
			return "", err
		}
		ids = append(ids, id)
	}

	recordID, err := identity.Resolve(record)
	if err != nil {
		return "", err
	}

	return b.Compose(policyName, rule, ids, recordID)
}

// Compose builds the full key from already-resolved identities.
func (b *Builder) Compose(policyName, rule string, contextIDs []string, recordID string) (string, error) {
	parts := Parts{
		Namespace: b.Namespace(),
		Contexts:  contextIDs,
		Record:    recordID,
		Policy:    policyName,
		Rule:      rule,
	}

	var key string
	if b.ruleKey != nil {
		key = b.ruleKey(parts)
	} else {
		key = strings.Join([]string{
			parts.Namespace,
			b.joinContexts(contextIDs),
			recordID,
			policyName,
			rule,
		}, Separator)
	}

	if err := Validate(key); err != nil {
		return "", err
	}
	return key, nil
}

func (b *Builder) joinContexts(ids []string) string {
	if b.join != nil {
		return b.join(ids)
	}
	return strings.Join(ids, Separator)
}

// Validate checks that a composed key is storable.
func Validate(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
