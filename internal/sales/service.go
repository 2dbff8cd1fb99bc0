package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockpoint/stockpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, saleID int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
	ListVoidedOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// CacheInvalidator lets the service notify the cached repositories that their
// entities changed. Sales mutations also move product stock, so both caches
// are invalidated.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// TaxRate is applied to the subtotal of every sale.
	TaxRate decimal.Decimal
	// AllowNegativeStock disables the non-negative floor on stock decrement,
	// permitting oversell under concurrent checkouts.
	AllowNegativeStock bool
}

// Service is the transactional sale engine: a sale's financial record, its
// line items and the coupled inventory depletion commit or roll back as one.
type Service struct {
	repo          RepositoryPort
	bus           *shared.Bus
	logger        *slog.Logger
	validate      *validator.Validate
	cfg           ServiceConfig
	productsCache CacheInvalidator
	salesCache    CacheInvalidator
}

// NewService builds Service. Either cache invalidator may be nil.
func NewService(repo RepositoryPort, bus *shared.Bus, logger *slog.Logger, cfg ServiceConfig, productsCache, salesCache CacheInvalidator) *Service {
	return &Service{
		repo:          repo,
		bus:           bus,
		logger:        logger,
		validate:      validator.New(),
		cfg:           cfg,
		productsCache: productsCache,
		salesCache:    salesCache,
	}
}

// CreateSale records a checkout atomically: sale row, then line items, then
// one atomic stock decrement per line. Any failure rolls back the whole
// transaction; no partial state is ever visible.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest) (Sale, error) {
	if err := s.validate.Struct(req); err != nil {
		return Sale{}, fmt.Errorf("sales: invalid sale: %w", err)
	}

	sale := Sale{
		ReceiptNumber: newReceiptNumber(),
		Timestamp:     time.Now().UTC(),
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		subtotal := decimal.Zero
		items := make([]SaleItem, 0, len(req.Items))
		for _, line := range req.Items {
			snap, err := tx.GetProductSnapshot(ctx, line.ProductID)
			if err != nil {
				return err
			}
			lineTotal := snap.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, SaleItem{
				ProductID:      snap.ID,
				ProductName:    snap.Name,
				ProductBarcode: snap.Barcode,
				UnitPrice:      snap.Price,
				Quantity:       line.Quantity,
				TotalPrice:     lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		sale.Subtotal = subtotal
		sale.Tax = subtotal.Mul(s.cfg.TaxRate).Round(2)
		sale.Total = sale.Subtotal.Add(sale.Tax)

		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		if err := tx.InsertSaleItems(ctx, saleID, items); err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = saleID
			if err := tx.AdjustStock(ctx, items[i].ProductID, -items[i].Quantity, !s.cfg.AllowNegativeStock); err != nil {
				return err
			}
		}
		sale.Items = items
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.afterMutation(ctx)
	s.logger.Info("sale created",
		slog.Int64("sale_id", sale.ID),
		slog.String("receipt", sale.ReceiptNumber),
		slog.String("total", sale.Total.StringFixed(2)))
	return sale, nil
}

// VoidSale is the logical inverse of CreateSale's stock effect: inside one
// transaction it restores each line's quantity onto the product and marks the
// sale voided with timestamp and reason. Stock restoration is last-writer-wins
// and never re-validated against other concurrent mutations; lines whose
// product was since deleted restore nothing, the denormalized item keeps the
// history.
func (s *Service) VoidSale(ctx context.Context, saleID int64, reason string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.IsVoided {
			return fmt.Errorf("sales: void sale %d: %w", saleID, shared.ErrAlreadyVoided)
		}

		items, err := tx.GetSaleItems(ctx, saleID)
		if err != nil {
			return err
		}
		for _, item := range items {
			// Restoration never floors: returning stock cannot go negative.
			if err := tx.AdjustStock(ctx, item.ProductID, item.Quantity, false); err != nil {
				return err
			}
		}
		return tx.MarkVoided(ctx, saleID, time.Now().UTC(), reason)
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx)
	s.logger.Info("sale voided", slog.Int64("sale_id", saleID), slog.String("reason", reason))
	return nil
}

// DeleteVoidedSale permanently removes a voided sale and its line items.
// Deleting an active sale fails with InvalidState.
func (s *Service) DeleteVoidedSale(ctx context.Context, saleID int64) error {
	return s.DeleteMultipleVoidedSales(ctx, []int64{saleID})
}

// DeleteMultipleVoidedSales removes a batch of voided sales in one
// transaction; a single non-voided ID fails the whole batch. Line items are
// deleted before their parent to respect referential order.
func (s *Service) DeleteMultipleVoidedSales(ctx context.Context, saleIDs []int64) error {
	if len(saleIDs) == 0 {
		return nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, saleID := range saleIDs {
			sale, err := tx.GetSale(ctx, saleID)
			if err != nil {
				return err
			}
			if !sale.IsVoided {
				return fmt.Errorf("sales: delete sale %d: not voided: %w", saleID, shared.ErrInvalidState)
			}
			if err := tx.DeleteSaleItems(ctx, saleID); err != nil {
				return err
			}
			if err := tx.DeleteSale(ctx, saleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx)
	return nil
}

// CleanupOldVoidedSales purges sales voided more than retentionDays ago and
// returns how many were removed.
func (s *Service) CleanupOldVoidedSales(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	ids, err := s.repo.ListVoidedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.DeleteMultipleVoidedSales(ctx, ids); err != nil {
		return 0, err
	}
	s.logger.Info("cleaned up voided sales",
		slog.Int("removed", len(ids)),
		slog.Int("retention_days", retentionDays))
	return len(ids), nil
}

// GetSale loads a sale with its items.
func (s *Service) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	return s.repo.GetByID(ctx, saleID)
}

// ListSales returns sales matching filter, newest first.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) afterMutation(ctx context.Context) {
	if s.salesCache != nil {
		s.salesCache.InvalidateCache(ctx)
	}
	if s.productsCache != nil {
		s.productsCache.InvalidateCache(ctx)
	}
	s.bus.Publish(shared.TopicSales, nil)
}

func newReceiptNumber() string {
	id := uuid.New()
	return "R-" + strings.ToUpper(id.String()[:8])
}
