// Package cachekey composes full cache keys for rule-evaluation results.
//
// A key has the shape
//
//	namespace/context-identities/record-identity/policy-type/rule
//
// and is a pure function of its components. The default namespace embeds
// the caching layer's own version, so a version upgrade strands every
// previously written key without any deletion. A Builder exposes three
// override points (namespace, context join, full per-rule key) so a policy
// type can swap any composition step without subclass-style tricks.
package cachekey
