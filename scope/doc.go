// Package scope owns the per-evaluation-scope cache storage.
//
// A Scope bounds one logical unit of work (typically one request) and
// holds two maps: reusable policy instances and rule results shared across
// evaluations inside the scope. Scopes are bound to a context.Context, one
// per concurrent execution unit, and are created and cleared explicitly by
// the embedding host; nothing here auto-expires.
package scope
