package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotServesFromMemoryWithinTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	snap := Snapshot[int]{TTL: time.Minute, Clock: func() time.Time { return now }}

	calls := 0
	reload := func(context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil
	}

	items, err := snap.Get(ctx, reload)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, items)
	require.Equal(t, 1, calls)

	_, err = snap.Get(ctx, reload)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, err = snap.Get(ctx, reload)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSnapshotStaleServedOnReloadFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	snap := Snapshot[string]{TTL: time.Minute, Clock: func() time.Time { return now }}

	_, err := snap.Get(ctx, func(context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	items, err := snap.Get(ctx, func(context.Context) ([]string, error) {
		return nil, errors.New("storage down")
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, items)
}

func TestSnapshotReloadFailureWithNothingHeld(t *testing.T) {
	snap := Snapshot[string]{TTL: time.Minute}
	_, err := snap.Get(context.Background(), func(context.Context) ([]string, error) {
		return nil, errors.New("storage down")
	})
	require.Error(t, err)
}

func TestSnapshotFreshRespectsTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	snap := Snapshot[int]{TTL: time.Minute, Clock: func() time.Time { return now }}

	_, ok := snap.Fresh()
	require.False(t, ok)

	_, err := snap.Get(ctx, func(context.Context) ([]int, error) {
		return []int{1}, nil
	})
	require.NoError(t, err)

	items, ok := snap.Fresh()
	require.True(t, ok)
	require.Equal(t, []int{1}, items)

	// Past the TTL, Fresh refuses while Peek still serves.
	now = now.Add(2 * time.Minute)
	_, ok = snap.Fresh()
	require.False(t, ok)
	items, ok = snap.Peek()
	require.True(t, ok)
	require.Equal(t, []int{1}, items)
}

func TestSnapshotPatchAndInvalidate(t *testing.T) {
	ctx := context.Background()
	snap := Snapshot[int]{TTL: time.Hour}

	calls := 0
	reload := func(context.Context) ([]int, error) {
		calls++
		return []int{1}, nil
	}
	_, err := snap.Get(ctx, reload)
	require.NoError(t, err)

	snap.Patch(func(items []int) []int { return append(items, 9) })
	items, err := snap.Get(ctx, reload)
	require.NoError(t, err)
	require.Equal(t, []int{1, 9}, items)
	require.Equal(t, 1, calls)

	snap.Invalidate()
	_, ok := snap.Peek()
	require.False(t, ok)
	_, err = snap.Get(ctx, reload)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
