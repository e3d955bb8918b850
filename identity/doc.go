// Package identity derives stable string identities for records and
// authorization context objects.
//
// An identity is the per-object component of a cache key. Objects opt in by
// implementing one of a small, closed set of capabilities; Resolve probes
// them in a fixed precedence order.
package identity
