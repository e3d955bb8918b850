package memo

// Memo records successful rule results for one policy instance.
//
// Contract:
// - Lifetime: bound to the owning policy instance; never shared across
//   instances or execution units.
// - Concurrency: confined to one execution unit; not goroutine safe.
// - Failures: a compute error is never recorded, so a failing rule is
//   recomputed on every call until it succeeds.
type Memo struct {
	results map[string]bool
}

// New creates an empty memo.
func New() *Memo {
	return &Memo{results: make(map[string]bool)}
}

// Do returns the memoized result for rule, invoking compute on first use.
// Denials memoize the same as grants: a stored false is a hit.
func (m *Memo) Do(rule string, compute func() (bool, error)) (bool, error) {
	if result, ok := m.results[rule]; ok {
		return result, nil
	}

	result, err := compute()
	if err != nil {
		return false, err
	}

	m.results[rule] = result
	return result, nil
}

// Cached reports the memoized result for rule, if any, without computing.
func (m *Memo) Cached(rule string) (result, ok bool) {
	result, ok = m.results[rule]
	return result, ok
}

// Len reports how many rules have memoized results.
func (m *Memo) Len() int {
	return len(m.results)
}
