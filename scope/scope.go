package scope

import "github.com/google/uuid"

// InstanceKey identifies a logical policy instance within one scope.
type InstanceKey struct {
	// Record is the record identity.
	Record string

	// Contexts is the joined context identities, in declared order.
	Contexts string

	// Policy is the policy type name.
	Policy string
}

// Scope owns per-evaluation-scope storage.
//
// Contract:
// - Ownership: created and cleared explicitly by the embedding host;
//   instances stored here are owned by the scope and never shared across
//   scopes.
// - Concurrency: confined to one execution unit; not goroutine safe.
type Scope struct {
	id        string
	instances map[InstanceKey]any
	results   map[string]bool
}

// New creates an empty scope with a fresh ID.
func New() *Scope {
	return &Scope{
		id:        uuid.NewString(),
		instances: make(map[InstanceKey]any),
		results:   make(map[string]bool),
	}
}

// ID returns the scope's unique ID, for log correlation.
func (s *Scope) ID() string {
	return s.id
}

// GetOrCreate returns the instance stored under key, calling factory and
// storing its result on first use.
func (s *Scope) GetOrCreate(key InstanceKey, factory func() any) any {
	if inst, ok := s.instances[key]; ok {
		return inst
	}
	inst := factory()
	s.instances[key] = inst
	return inst
}

// CachedResult reports the scope-cached result for a full cache key.
func (s *Scope) CachedResult(key string) (result, ok bool) {
	result, ok = s.results[key]
	return result, ok
}

// StoreResult records a rule result under its full cache key for the
// remainder of the scope.
func (s *Scope) StoreResult(key string, result bool) {
	s.results[key] = result
}

// Clear empties all scope storage. The scope remains usable; long-lived
// hosts call this after each logical unit of work.
func (s *Scope) Clear() {
	s.instances = make(map[InstanceKey]any)
	s.results = make(map[string]bool)
}

// Len reports the number of cached instances, for host diagnostics.
func (s *Scope) Len() int {
	return len(s.instances)
}
