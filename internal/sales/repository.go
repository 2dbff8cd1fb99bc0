package sales

import (
	"context"
	"log/slog"
	"time"

	"github.com/stockpoint/stockpoint/internal/platform/cache"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// ListStore is the storage surface the cached repository reads through.
type ListStore interface {
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
	GetByID(ctx context.Context, saleID int64) (Sale, error)
}

const cacheEntity = "sales"

// CachedRepository keeps a TTL snapshot of the full sale history for the
// dashboard-style read paths. The sale engine invalidates it after every
// mutation, so within the TTL reads are pure memory.
type CachedRepository struct {
	store     ListStore
	secondary *cache.Store
	bus       *shared.Bus
	logger    *slog.Logger
	snapshot  shared.Snapshot[Sale]
}

// NewCachedRepository constructs the cached sales repository. TTL is
// typically the configured sales cache TTL (~2 minutes).
func NewCachedRepository(store ListStore, secondary *cache.Store, bus *shared.Bus, logger *slog.Logger, ttl time.Duration) *CachedRepository {
	r := &CachedRepository{store: store, secondary: secondary, bus: bus, logger: logger}
	r.snapshot.TTL = ttl
	return r
}

// GetAll returns the sale history, served from memory within the TTL.
func (r *CachedRepository) GetAll(ctx context.Context) ([]Sale, error) {
	return r.snapshot.Get(ctx, func(ctx context.Context) ([]Sale, error) {
		var warm []Sale
		if _, held := r.snapshot.Peek(); !held {
			if r.secondary.GetSnapshot(ctx, cacheEntity, &warm) {
				r.bus.Publish(shared.TopicSales, warm)
				return warm, nil
			}
		}
		salesList, err := r.store.List(ctx, ListFilter{})
		if err != nil {
			r.logger.Warn("sales reload failed", slog.String("error", err.Error()))
			return nil, err
		}
		r.secondary.PutSnapshot(ctx, cacheEntity, salesList)
		r.bus.Publish(shared.TopicSales, salesList)
		return salesList, nil
	})
}

// GetByDateRange returns sales between from (inclusive) and to (exclusive).
// Range queries go to storage; the snapshot only mirrors the unfiltered set.
func (r *CachedRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]Sale, error) {
	return r.store.List(ctx, ListFilter{From: from, To: to})
}

// GetByID prefers the snapshot while it is fresh and falls back to storage.
func (r *CachedRepository) GetByID(ctx context.Context, saleID int64) (Sale, error) {
	if held, ok := r.snapshot.Fresh(); ok {
		for _, sale := range held {
			if sale.ID == saleID {
				return sale, nil
			}
		}
	}
	return r.store.GetByID(ctx, saleID)
}

// InvalidateCache clears the snapshot and the secondary cache key.
func (r *CachedRepository) InvalidateCache(ctx context.Context) {
	r.snapshot.Invalidate()
	r.secondary.Invalidate(ctx, cacheEntity)
}

// Subscribe returns the sales change stream.
func (r *CachedRepository) Subscribe() (<-chan shared.Event, func()) {
	return r.bus.Subscribe(shared.TopicSales)
}
