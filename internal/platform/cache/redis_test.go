package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func testStore(t *testing.T) *Store {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	store.PutSnapshot(ctx, "products", []payload{{Name: "cola", Count: 3}})

	var got []payload
	require.True(t, store.GetSnapshot(ctx, "products", &got))
	require.Equal(t, []payload{{Name: "cola", Count: 3}}, got)

	store.Invalidate(ctx, "products")
	require.False(t, store.GetSnapshot(ctx, "products", &got))
}

func TestStoreKeysAreEntityScoped(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	store.PutSnapshot(ctx, "products", []payload{{Name: "a"}})
	store.PutSnapshot(ctx, "sales", []payload{{Name: "b"}})
	store.Invalidate(ctx, "products")

	var got []payload
	require.False(t, store.GetSnapshot(ctx, "products", &got))
	require.True(t, store.GetSnapshot(ctx, "sales", &got))
}

func TestNilStoreIsSafe(t *testing.T) {
	ctx := context.Background()
	var store *Store

	store.PutSnapshot(ctx, "products", []payload{{Name: "a"}})
	store.Invalidate(ctx, "products")
	var got []payload
	require.False(t, store.GetSnapshot(ctx, "products", &got))

	disabled := NewStore(nil, time.Minute)
	disabled.PutSnapshot(ctx, "products", []payload{{Name: "a"}})
	require.False(t, disabled.GetSnapshot(ctx, "products", &got))
}
