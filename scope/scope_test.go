package scope

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type policyInstance struct{ name string }

func postKey() InstanceKey {
	return InstanceKey{Record: "Post#42", Contexts: "user::7", Policy: "PostPolicy"}
}

func TestScope_GetOrCreateReturnsSameInstance(t *testing.T) {
	s := New()
	calls := 0
	factory := func() any {
		calls++
		return &policyInstance{name: "PostPolicy"}
	}

	first := s.GetOrCreate(postKey(), factory)
	second := s.GetOrCreate(postKey(), factory)

	if first != second {
		t.Error("GetOrCreate should return the identical instance within one scope")
	}
	if calls != 1 {
		t.Errorf("factory ran %d times, want 1", calls)
	}
}

func TestScope_DistinctKeysDistinctInstances(t *testing.T) {
	s := New()
	factory := func() any { return &policyInstance{} }

	a := s.GetOrCreate(InstanceKey{Record: "Post#1", Policy: "PostPolicy"}, factory)
	b := s.GetOrCreate(InstanceKey{Record: "Post#2", Policy: "PostPolicy"}, factory)

	if a == b {
		t.Error("different records should map to different instances")
	}
	if s.Len() != 2 {
		t.Errorf("Len returned %d, want 2", s.Len())
	}
}

// Clearing the scope between two GetOrCreate calls with identical keys
// yields two distinct instances, verified by identity.
func TestScope_ClearYieldsFreshInstances(t *testing.T) {
	s := New()
	factory := func() any { return &policyInstance{} }

	before := s.GetOrCreate(postKey(), factory)
	s.Clear()
	after := s.GetOrCreate(postKey(), factory)

	if before == after {
		t.Error("GetOrCreate after Clear should return a distinct instance")
	}
}

func TestScope_Results(t *testing.T) {
	s := New()
	key := "acp:1.0/user::7/Post#42/PostPolicy/show?"

	if _, ok := s.CachedResult(key); ok {
		t.Error("fresh scope should have no results")
	}

	s.StoreResult(key, false)
	result, ok := s.CachedResult(key)
	if !ok {
		t.Fatal("stored result should be retrievable")
	}
	if result {
		t.Error("stored denial should round-trip as false")
	}

	s.Clear()
	if _, ok := s.CachedResult(key); ok {
		t.Error("Clear should drop cached results")
	}
}

func TestFromContext_NilWithoutBinding(t *testing.T) {
	if s := FromContext(context.Background()); s != nil {
		t.Errorf("FromContext without binding returned %v, want nil", s)
	}
}

func TestNewContext_BindsScope(t *testing.T) {
	s := New()
	ctx := NewContext(context.Background(), s)

	if got := FromContext(ctx); got != s {
		t.Error("FromContext should return the bound scope")
	}
}

func TestWith_ClearsOnReturn(t *testing.T) {
	var captured *Scope

	err := With(context.Background(), func(ctx context.Context) error {
		captured = FromContext(ctx)
		if captured == nil {
			t.Fatal("With should bind a scope")
		}
		captured.GetOrCreate(postKey(), func() any { return &policyInstance{} })
		captured.StoreResult("k", true)
		return nil
	})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}

	if captured.Len() != 0 {
		t.Error("scope storage should be cleared after With returns")
	}
	if _, ok := captured.CachedResult("k"); ok {
		t.Error("scope results should be cleared after With returns")
	}
}

func TestWith_ClearsOnError(t *testing.T) {
	boom := errors.New("handler failed")
	var captured *Scope

	err := With(context.Background(), func(ctx context.Context) error {
		captured = FromContext(ctx)
		captured.GetOrCreate(postKey(), func() any { return &policyInstance{} })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("With should propagate the handler error, got: %v", err)
	}

	if captured.Len() != 0 {
		t.Error("scope storage should be cleared on the error path")
	}
}

// Each execution unit owns an independent scope; concurrent units must not
// observe each other's instances.
func TestWith_ScopesAreIsolatedAcrossGoroutines(t *testing.T) {
	const goroutines = 32

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_ = With(context.Background(), func(ctx context.Context) error {
				s := FromContext(ctx)
				own := &policyInstance{}
				got := s.GetOrCreate(postKey(), func() any { return own })
				if got != own {
					t.Error("scope leaked an instance from another execution unit")
				}
				return nil
			})
		}()
	}

	wg.Wait()
}

func TestNew_UniqueIDs(t *testing.T) {
	if New().ID() == New().ID() {
		t.Error("scopes should have unique IDs")
	}
}
