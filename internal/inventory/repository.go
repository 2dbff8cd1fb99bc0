package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/stockpoint/stockpoint/internal/platform/cache"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// Store is the storage surface the cached repository sits on.
type Store interface {
	InsertBatch(ctx context.Context, counts []Count) ([]Count, error)
	List(ctx context.Context, filter ListFilter) ([]Count, error)
}

const cacheEntity = "inventory"

// Repository layers the TTL snapshot cache and change notifications over the
// count store. Counts are immutable once written, so the snapshot only ever
// grows; appends patch it surgically.
type Repository struct {
	store     Store
	secondary *cache.Store
	bus       *shared.Bus
	logger    *slog.Logger
	snapshot  shared.Snapshot[Count]
}

// NewRepository constructs the cached inventory repository. TTL is typically
// the configured inventory cache TTL (~10 minutes).
func NewRepository(store Store, secondary *cache.Store, bus *shared.Bus, logger *slog.Logger, ttl time.Duration) *Repository {
	r := &Repository{store: store, secondary: secondary, bus: bus, logger: logger}
	r.snapshot.TTL = ttl
	return r
}

// GetAll returns every recorded count, served from memory within the TTL.
func (r *Repository) GetAll(ctx context.Context) ([]Count, error) {
	return r.snapshot.Get(ctx, func(ctx context.Context) ([]Count, error) {
		var warm []Count
		if _, held := r.snapshot.Peek(); !held {
			if r.secondary.GetSnapshot(ctx, cacheEntity, &warm) {
				r.bus.Publish(shared.TopicInventory, warm)
				return warm, nil
			}
		}
		counts, err := r.store.List(ctx, ListFilter{})
		if err != nil {
			r.logger.Warn("inventory reload failed", slog.String("error", err.Error()))
			return nil, err
		}
		r.secondary.PutSnapshot(ctx, cacheEntity, counts)
		r.bus.Publish(shared.TopicInventory, counts)
		return counts, nil
	})
}

// List queries storage with the composed filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Count, error) {
	return r.store.List(ctx, filter)
}

// Record stores a session's counts and prepends them to the snapshot.
func (r *Repository) Record(ctx context.Context, counts []Count) ([]Count, error) {
	inserted, err := r.store.InsertBatch(ctx, counts)
	if err != nil {
		return nil, err
	}
	r.snapshot.Patch(func(items []Count) []Count {
		return append(append([]Count{}, inserted...), items...)
	})
	r.secondary.Invalidate(ctx, cacheEntity)
	if held, ok := r.snapshot.Peek(); ok {
		r.bus.Publish(shared.TopicInventory, held)
	}
	return inserted, nil
}

// InvalidateCache clears the snapshot and the secondary cache key.
func (r *Repository) InvalidateCache(ctx context.Context) {
	r.snapshot.Invalidate()
	r.secondary.Invalidate(ctx, cacheEntity)
}

// Subscribe returns the inventory change stream.
func (r *Repository) Subscribe() (<-chan shared.Event, func()) {
	return r.bus.Subscribe(shared.TopicInventory)
}
