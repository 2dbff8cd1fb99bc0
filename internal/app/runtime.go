package app

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/stockpoint/stockpoint/internal/backup"
	"github.com/stockpoint/stockpoint/internal/catalog"
	"github.com/stockpoint/stockpoint/internal/inventory"
	"github.com/stockpoint/stockpoint/internal/platform/cache"
	"github.com/stockpoint/stockpoint/internal/platform/db"
	"github.com/stockpoint/stockpoint/internal/sales"
	"github.com/stockpoint/stockpoint/internal/search"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// Runtime is the composition root: the shared storage handle and every
// repository and service built on it. The handle is constructed once here and
// passed by reference; no package holds hidden global state.
type Runtime struct {
	Config *Config
	Logger *slog.Logger
	Handle *sql.DB
	Redis  *redis.Client
	Bus    *shared.Bus

	Products         *catalog.Repository
	ProductsService  *catalog.Service
	Sales            *sales.CachedRepository
	SalesService     *sales.Service
	Inventory        *inventory.Repository
	InventoryService *inventory.Service
	Backup           *backup.Manager
}

// NewRuntime opens the store, migrates the schema, probes the search
// capability and wires the repositories and services.
func NewRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	handle, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, handle, logger); err != nil {
		return nil, err
	}
	index, err := search.Probe(ctx, handle, logger)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			// Secondary cache only; the store works without it.
			logger.Warn("redis unavailable, secondary cache disabled",
				slog.String("error", err.Error()))
			redisClient = nil
		}
	}

	bus := shared.NewBus()

	productStore := catalog.NewSQLRepository(handle, index)
	products := catalog.NewRepository(productStore,
		cache.NewStore(redisClient, cfg.ProductCacheTTL), bus, logger, cfg.ProductCacheTTL)
	productsService := catalog.NewService(products)

	salesStore := sales.NewRepository(handle)
	salesRepo := sales.NewCachedRepository(salesStore,
		cache.NewStore(redisClient, cfg.SalesCacheTTL), bus, logger, cfg.SalesCacheTTL)
	salesService := sales.NewService(salesStore, bus, logger, sales.ServiceConfig{
		TaxRate:            cfg.Tax(),
		AllowNegativeStock: cfg.AllowNegativeStock,
	}, products, salesRepo)

	countStore := inventory.NewSQLRepository(handle)
	counts := inventory.NewRepository(countStore,
		cache.NewStore(redisClient, cfg.InventoryCacheTTL), bus, logger, cfg.InventoryCacheTTL)
	inventoryService := inventory.NewService(counts, products, logger)

	backupManager := backup.NewManager(handle, productStore, salesStore, countStore, index)

	return &Runtime{
		Config:           cfg,
		Logger:           logger,
		Handle:           handle,
		Redis:            redisClient,
		Bus:              bus,
		Products:         products,
		ProductsService:  productsService,
		Sales:            salesRepo,
		SalesService:     salesService,
		Inventory:        counts,
		InventoryService: inventoryService,
		Backup:           backupManager,
	}, nil
}

// Close releases the storage handle and redis client.
func (r *Runtime) Close() error {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	return db.Close(r.Config.DBPath)
}
