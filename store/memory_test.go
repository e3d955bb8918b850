package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemory_FetchComputesOnce(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()
	key := "acp:1.0/user::7::admin/Post::42::2024-01-01/PostPolicy/show?"

	first, err := s.Fetch(ctx, key, Options{TTL: time.Minute}, func(context.Context) (any, error) {
		return true, nil
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// The second compute returns the opposite value; it must never run.
	second, err := s.Fetch(ctx, key, Options{TTL: time.Minute}, func(context.Context) (any, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if first != true || second != true {
		t.Errorf("Fetch returned (%v, %v), want (true, true)", first, second)
	}
}

func TestMemory_ComputeErrorNotStored(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()
	boom := errors.New("db unavailable")
	calls := 0

	for i := 0; i < 2; i++ {
		_, err := s.Fetch(ctx, "k", Options{}, func(context.Context) (any, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Fetch should propagate the compute error unchanged, got: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("failing compute ran %d times, want 2", calls)
	}
	if s.Len() != 0 {
		t.Error("no entry should be written on compute failure")
	}

	// A later success populates the entry as usual.
	value, err := s.Fetch(ctx, "k", Options{}, func(context.Context) (any, error) {
		return true, nil
	})
	if err != nil || value != true {
		t.Fatalf("Fetch returned (%v, %v), want (true, nil)", value, err)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	first, _ := s.Fetch(ctx, "k", Options{TTL: 30 * time.Millisecond}, compute)
	time.Sleep(60 * time.Millisecond)
	second, _ := s.Fetch(ctx, "k", Options{TTL: 30 * time.Millisecond}, compute)

	if first == second {
		t.Error("an expired entry should be recomputed")
	}
	if calls != 2 {
		t.Errorf("compute ran %d times, want 2", calls)
	}
}

func TestMemory_DefaultTTLApplies(t *testing.T) {
	s := NewMemory(30 * time.Millisecond)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return true, nil
	}

	_, _ = s.Fetch(ctx, "k", Options{}, compute)
	time.Sleep(60 * time.Millisecond)
	_, _ = s.Fetch(ctx, "k", Options{}, compute)

	if calls != 2 {
		t.Errorf("compute ran %d times, want 2 (default TTL should expire the entry)", calls)
	}
}

func TestMemory_ConcurrentFetchComputesOnce(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()

	const goroutines = 50
	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			value, err := s.Fetch(ctx, "hot-key", Options{TTL: time.Minute}, func(context.Context) (any, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return true, nil
			})
			if err != nil {
				t.Errorf("Fetch failed: %v", err)
			}
			if value != true {
				t.Errorf("Fetch returned %v, want true", value)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute ran %d times under concurrent fetch, want 1", got)
	}
}

func TestMemory_DeleteMatched(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()
	seed := func(key string) {
		_, _ = s.Fetch(ctx, key, Options{TTL: time.Minute}, func(context.Context) (any, error) {
			return true, nil
		})
	}

	seed("acp:1.0/u1/Post#1/PostPolicy/show?")
	seed("acp:1.0/u1/Post#2/PostPolicy/show?")
	seed("acp:1.0/u1/Comment#1/CommentPolicy/show?")

	deleted, err := s.DeleteMatched(ctx, "acp:1.0/u1/Post#*")
	if err != nil {
		t.Fatalf("DeleteMatched failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteMatched removed %d keys, want 2", deleted)
	}
	if s.Len() != 1 {
		t.Errorf("store has %d entries after deletion, want 1", s.Len())
	}

	// Deleted keys recompute on the next fetch.
	calls := 0
	_, _ = s.Fetch(ctx, "acp:1.0/u1/Post#1/PostPolicy/show?", Options{}, func(context.Context) (any, error) {
		calls++
		return false, nil
	})
	if calls != 1 {
		t.Error("a deleted key should be recomputed")
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"exact", "exact", true},
		{"exact", "exactly", false},
		{"acp:1.0/*", "acp:1.0/u1/Post#1/PostPolicy/show?", true},
		{"acp:1.0/*", "acp:2.0/u1/Post#1/PostPolicy/show?", false},
		{"*/show?", "acp:1.0/u1/Post#1/PostPolicy/show?", true},
		{"*/edit?", "acp:1.0/u1/Post#1/PostPolicy/show?", false},
		{"acp:1.0/*/PostPolicy/*", "acp:1.0/u1/Post#1/PostPolicy/show?", true},
		{"acp:1.0/*/CommentPolicy/*", "acp:1.0/u1/Post#1/PostPolicy/show?", false},
		{"*", "anything", true},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.key); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestDeleteMatched_UnsupportedStore(t *testing.T) {
	_, err := DeleteMatched(context.Background(), flatStore{}, "acp:*")
	if !errors.Is(err, ErrPatternUnsupported) {
		t.Errorf("DeleteMatched on a flat store should return ErrPatternUnsupported, got: %v", err)
	}

	_, err = DeleteMatched(context.Background(), nil, "acp:*")
	if !errors.Is(err, ErrNilStore) {
		t.Errorf("DeleteMatched on a nil store should return ErrNilStore, got: %v", err)
	}
}

// flatStore is a Store whose backend cannot enumerate keys.
type flatStore struct{}

func (flatStore) Fetch(ctx context.Context, _ string, _ Options, compute ComputeFunc) (any, error) {
	return compute(ctx)
}
