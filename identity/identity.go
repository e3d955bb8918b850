package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoIdentity is returned when an object exposes none of the identity
// capabilities. This is a configuration error: the object cannot take part
// in cache-key derivation until one of the capabilities is implemented.
var ErrNoIdentity = errors.New("identity: object has no derivable cache identity")

// PolicyCacheKeyer is the policy-specific identity capability. It takes
// precedence over every other capability and is the hook for making an
// identity depend on mutable state: return a string that embeds a
// last-modified timestamp or version and any relevant change produces a
// new cache key automatically.
type PolicyCacheKeyer interface {
	PolicyCacheKey() string
}

// CacheKeyer is the generic identity capability, consulted when no
// policy-specific identity is exposed.
type CacheKeyer interface {
	CacheKey() string
}

// Identified exposes a stable unique handle. The resolved identity is
// "<TypeName>#<id>", so two types sharing handle values do not collide.
type Identified interface {
	ID() string
}

// Resolve derives a stable string identity for obj.
//
// Contract:
// - Precedence: PolicyCacheKeyer, then CacheKeyer, then Identified; the
//   first capability the object satisfies wins and the rest are ignored.
// - Purity: no side effects; deterministic for a given object state.
// - Errors: ErrNoIdentity when no capability applies.
func Resolve(obj any) (string, error) {
	switch o := obj.(type) {
	case PolicyCacheKeyer:
		return o.PolicyCacheKey(), nil
	case CacheKeyer:
		return o.CacheKey(), nil
	case Identified:
		return typeName(obj) + "#" + o.ID(), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrNoIdentity, obj)
	}
}

// typeName returns the bare type name of obj, stripped of pointer markers
// and package qualifiers.
func typeName(obj any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", obj), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
