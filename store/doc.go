// Package store provides the durable, pluggable cache tier.
//
// A Store persists rule results beyond scope and process boundaries via a
// single fetch-or-compute operation. Two backends ship here: an in-process
// Memory store with per-process stampede damping, and a Redis store for
// multi-process hosts. Stores that can enumerate keys additionally
// implement PatternDeleter for manual wildcard invalidation.
package store
