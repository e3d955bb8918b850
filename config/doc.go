// Package config loads the process-wide caching configuration and wires
// a ready Evaluator from it: which backing store is active, the key
// namespace, and the per-scope memoization toggles.
package config
