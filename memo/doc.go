// Package memo provides per-policy-instance rule memoization, the
// innermost cache tier. A Memo lives and dies with one policy instance
// and is strictly an optimization: correctness must never depend on a
// memo hit.
package memo
