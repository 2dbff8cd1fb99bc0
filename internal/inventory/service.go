package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockpoint/stockpoint/internal/catalog"
)

// ProductPort is the catalog surface the counting service needs.
type ProductPort interface {
	GetByID(ctx context.Context, id int64) (catalog.Product, error)
	SetStock(ctx context.Context, id int64, quantity int) error
}

// Service records counting sessions. Only lines whose physical count differs
// from the system count, or that carry notes, produce a record.
type Service struct {
	repo     *Repository
	products ProductPort
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo *Repository, products ProductPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, logger: logger, validate: validator.New()}
}

// RecordSession persists a counting session and, when requested, corrects
// each counted product's stock to its physical count.
func (s *Service) RecordSession(ctx context.Context, input SessionInput) ([]Count, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("inventory: invalid session: %w", err)
	}

	now := time.Now().UTC()
	records := []Count{}
	corrections := map[int64]int{}
	for _, line := range input.Counts {
		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		variance := line.PhysicalCount - product.StockQuantity
		if variance == 0 && line.Notes == nil {
			continue
		}
		records = append(records, Count{
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductBarcode: product.Barcode,
			SystemCount:    product.StockQuantity,
			PhysicalCount:  line.PhysicalCount,
			Variance:       variance,
			CountDate:      now,
			Notes:          line.Notes,
			CountedBy:      input.CountedBy,
		})
		if input.ApplyCorrections && variance != 0 {
			corrections[product.ID] = line.PhysicalCount
		}
	}
	if len(records) == 0 {
		return []Count{}, nil
	}

	inserted, err := s.repo.Record(ctx, records)
	if err != nil {
		return nil, err
	}

	for productID, physical := range corrections {
		if err := s.products.SetStock(ctx, productID, physical); err != nil {
			return nil, fmt.Errorf("inventory: apply correction for product %d: %w", productID, err)
		}
	}

	s.logger.Info("counting session recorded",
		slog.String("counted_by", input.CountedBy),
		slog.Int("records", len(inserted)),
		slog.Int("corrections", len(corrections)))
	return inserted, nil
}

// GetVariances lists recorded counts for analytics.
func (s *Service) GetVariances(ctx context.Context, filter ListFilter) ([]Count, error) {
	return s.repo.List(ctx, filter)
}
