package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/stockpoint/stockpoint/internal/platform/cache"
	"github.com/stockpoint/stockpoint/internal/search"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// Store is the storage-engine surface the cached repository sits on.
type Store interface {
	Insert(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Product, error)
	GetByBarcode(ctx context.Context, barcode string) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	AdjustStock(ctx context.Context, id int64, delta int, floor bool) error
	SetStock(ctx context.Context, id int64, quantity int) error
	Search(ctx context.Context, query string, limit, offset int) ([]Product, error)
}

const cacheEntity = "products"

// Repository layers a TTL snapshot cache, the optional secondary cache and
// change notifications over a product Store. Reads inside the TTL never hit
// storage; writes go through storage first and then patch the snapshot
// surgically.
type Repository struct {
	store     Store
	secondary *cache.Store
	bus       *shared.Bus
	logger    *slog.Logger
	snapshot  shared.Snapshot[Product]
}

// NewRepository constructs the cached product repository. TTL is typically
// the configured product cache TTL (~5 minutes).
func NewRepository(store Store, secondary *cache.Store, bus *shared.Bus, logger *slog.Logger, ttl time.Duration) *Repository {
	r := &Repository{store: store, secondary: secondary, bus: bus, logger: logger}
	r.snapshot.TTL = ttl
	return r
}

// GetAll returns the full product list, served from memory within the TTL.
func (r *Repository) GetAll(ctx context.Context) ([]Product, error) {
	return r.snapshot.Get(ctx, func(ctx context.Context) ([]Product, error) {
		// Cold start consults the secondary cache before the storage engine.
		var warm []Product
		if _, held := r.snapshot.Peek(); !held {
			if r.secondary.GetSnapshot(ctx, cacheEntity, &warm) {
				r.publish(warm)
				return warm, nil
			}
		}
		products, err := r.store.List(ctx, ListFilter{})
		if err != nil {
			r.logger.Warn("product reload failed", slog.String("error", err.Error()))
			return nil, err
		}
		r.secondary.PutSnapshot(ctx, cacheEntity, products)
		r.publish(products)
		return products, nil
	})
}

// GetByID prefers the snapshot while it is fresh and falls back to storage.
func (r *Repository) GetByID(ctx context.Context, id int64) (Product, error) {
	if held, ok := r.snapshot.Fresh(); ok {
		for _, p := range held {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return r.store.GetByID(ctx, id)
}

// GetByBarcode resolves a barcode, preferring the fresh snapshot.
func (r *Repository) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	if held, ok := r.snapshot.Fresh(); ok {
		for _, p := range held {
			if p.Barcode == barcode {
				return p, nil
			}
		}
	}
	return r.store.GetByBarcode(ctx, barcode)
}

// List queries storage with the composed filter; filtered listings are not
// cached (the snapshot only mirrors the unfiltered set).
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	return r.store.List(ctx, filter)
}

// GetLowStockProducts lists products at or below their minimum level.
func (r *Repository) GetLowStockProducts(ctx context.Context) ([]Product, error) {
	return r.store.List(ctx, ListFilter{LowStockOnly: true})
}

// Add persists a new product, then inserts it into the snapshot.
func (r *Repository) Add(ctx context.Context, p Product) (Product, error) {
	id, err := r.store.Insert(ctx, p)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	r.snapshot.Patch(func(items []Product) []Product {
		items = append(items, p)
		sortByName(items)
		return items
	})
	r.afterWrite(ctx)
	return p, nil
}

// Update persists the product, then replaces it in the snapshot.
func (r *Repository) Update(ctx context.Context, p Product) error {
	if err := r.store.Update(ctx, p); err != nil {
		return err
	}
	r.snapshot.Patch(func(items []Product) []Product {
		for i := range items {
			if items[i].ID == p.ID {
				items[i] = p
				break
			}
		}
		sortByName(items)
		return items
	})
	r.afterWrite(ctx)
	return nil
}

// Delete removes the product from storage and the snapshot.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.snapshot.Patch(func(items []Product) []Product {
		out := items[:0]
		for _, p := range items {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out
	})
	r.afterWrite(ctx)
	return nil
}

// AdjustStock applies an atomic stock delta and patches the snapshot.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int, floor bool) error {
	if err := r.store.AdjustStock(ctx, id, delta, floor); err != nil {
		return err
	}
	r.patchStock(id, func(current int) int { return current + delta })
	r.afterWrite(ctx)
	return nil
}

// SetStock sets an absolute stock quantity and patches the snapshot.
func (r *Repository) SetStock(ctx context.Context, id int64, quantity int) error {
	if err := r.store.SetStock(ctx, id, quantity); err != nil {
		return err
	}
	r.patchStock(id, func(int) int { return quantity })
	r.afterWrite(ctx)
	return nil
}

// Search always asks storage while it is healthy: index ranking is the
// source of truth. The snapshot only answers when the storage search itself
// fails, with equivalent (unranked) substring matching.
func (r *Repository) Search(ctx context.Context, query string, limit, offset int) ([]Product, error) {
	products, err := r.store.Search(ctx, query, limit, offset)
	if err == nil {
		return products, nil
	}
	held, ok := r.snapshot.Peek()
	if !ok {
		return nil, err
	}
	r.logger.Warn("storage search failed, matching against snapshot",
		slog.String("error", err.Error()))
	return snapshotMatch(held, query, limit, offset), nil
}

// InvalidateCache clears the snapshot and the secondary cache key; the next
// read goes to storage.
func (r *Repository) InvalidateCache(ctx context.Context) {
	r.snapshot.Invalidate()
	r.secondary.Invalidate(ctx, cacheEntity)
}

// Subscribe returns the product change stream.
func (r *Repository) Subscribe() (<-chan shared.Event, func()) {
	return r.bus.Subscribe(shared.TopicProducts)
}

func (r *Repository) afterWrite(ctx context.Context) {
	r.secondary.Invalidate(ctx, cacheEntity)
	if held, ok := r.snapshot.Peek(); ok {
		r.publish(held)
	}
}

func (r *Repository) publish(products []Product) {
	r.bus.Publish(shared.TopicProducts, products)
}

func (r *Repository) patchStock(id int64, apply func(int) int) {
	r.snapshot.Patch(func(items []Product) []Product {
		for i := range items {
			if items[i].ID == id {
				items[i].StockQuantity = apply(items[i].StockQuantity)
				break
			}
		}
		return items
	})
}

func sortByName(items []Product) {
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

// snapshotMatch is the resilience-path substring matcher: functionally
// equivalent to the fallback index, ordered by name.
func snapshotMatch(products []Product, query string, limit, offset int) []Product {
	folded := search.Fold(query)
	if folded == "" {
		return []Product{}
	}
	matched := []Product{}
	for _, p := range products {
		desc := ""
		if p.Description != nil {
			desc = *p.Description
		}
		haystack := search.Fold(p.Name + " " + p.Barcode + " " + p.Category + " " + desc)
		if strings.Contains(haystack, folded) {
			matched = append(matched, p)
		}
	}
	sortByName(matched)
	if offset >= len(matched) {
		return []Product{}
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
