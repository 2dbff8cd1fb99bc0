package shared

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Snapshot is a TTL-guarded in-memory copy of a repository's working set.
// Reads inside the TTL are served from memory; the first read after expiry
// reloads through a singleflight group so concurrent callers share one
// storage round trip. Mutations patch the snapshot surgically instead of
// forcing a reload.
type Snapshot[T any] struct {
	TTL   time.Duration
	Clock func() time.Time

	group       singleflight.Group
	mu          sync.RWMutex
	items       []T
	lastRefresh time.Time
	valid       bool
}

func (s *Snapshot[T]) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Get returns the cached items, reloading via fn when the snapshot is absent
// or stale. The returned slice is a copy; callers may not see each other's
// mutations.
func (s *Snapshot[T]) Get(ctx context.Context, reload func(context.Context) ([]T, error)) ([]T, error) {
	s.mu.RLock()
	if s.valid && s.now().Sub(s.lastRefresh) < s.TTL {
		items := copySlice(s.items)
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.group.Do("reload", func() (any, error) {
		items, err := reload(ctx)
		if err != nil {
			return nil, err
		}
		s.Replace(items)
		return items, nil
	})
	if err != nil {
		// Stale-but-available beats unavailable: a failed reload leaves any
		// held snapshot untouched and keeps serving it.
		if held, ok := s.Peek(); ok {
			return held, nil
		}
		return nil, err
	}
	return copySlice(result.([]T)), nil
}

// Fresh returns the snapshot only while it is within the TTL. Point reads use
// it so they never serve data older than the TTL allows.
func (s *Snapshot[T]) Fresh() ([]T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid || s.now().Sub(s.lastRefresh) >= s.TTL {
		return nil, false
	}
	return copySlice(s.items), true
}

// Peek returns the current snapshot without refreshing, even when stale.
// Used as the resilience path when storage reads fail.
func (s *Snapshot[T]) Peek() ([]T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid {
		return nil, false
	}
	return copySlice(s.items), true
}

// Replace installs a fresh snapshot and resets the refresh timestamp.
func (s *Snapshot[T]) Replace(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = copySlice(items)
	s.lastRefresh = s.now()
	s.valid = true
}

// Patch applies a surgical edit to the snapshot, if one is held. The refresh
// timestamp is untouched: a patch does not make stale data fresher.
func (s *Snapshot[T]) Patch(edit func([]T) []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return
	}
	s.items = edit(s.items)
}

// Invalidate clears the snapshot so the next read hits storage.
func (s *Snapshot[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.valid = false
	s.lastRefresh = time.Time{}
}

func copySlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
