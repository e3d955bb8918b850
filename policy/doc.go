// Package policy ties the cache tiers together around rule evaluation.
//
// A Spec declares a policy type: its named rules, the ordered
// authorization context it consumes, and which rules may be persisted to
// the external store. An Evaluator runs a rule through up to four tiers,
// outermost first: scope-held instance reuse, per-instance memoization,
// scope-held result reuse, and external fetch-or-compute. Every tier is
// transparent to errors and optional; with everything disabled the
// predicate simply runs.
package policy
