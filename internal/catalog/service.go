package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockpoint/stockpoint/internal/shared"
)

// Service validates catalog input and drives the cached repository.
type Service struct {
	repo     *Repository
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// CreateProduct validates and persists a new product.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return Product{}, fmt.Errorf("catalog: invalid product: %w", err)
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return Product{}, err
	}
	now := time.Now().UTC()
	return s.repo.Add(ctx, Product{
		Name:          req.Name,
		Barcode:       req.Barcode,
		Price:         price,
		Category:      req.Category,
		Description:   req.Description,
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// UpdateProduct applies a partial edit to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return Product{}, fmt.Errorf("catalog: invalid product update: %w", err)
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Barcode != nil {
		existing.Barcode = *req.Barcode
	}
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			return Product{}, err
		}
		existing.Price = price
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.StockQuantity != nil {
		existing.StockQuantity = *req.StockQuantity
	}
	if req.MinStockLevel != nil {
		existing.MinStockLevel = *req.MinStockLevel
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, existing); err != nil {
		return Product{}, err
	}
	return existing, nil
}

// ListPage returns one page of the catalog with paging metadata, served from
// the cached snapshot.
func (s *Service) ListPage(ctx context.Context, page, perPage int) ([]Product, shared.Pagination, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page, perPage, len(all))
	offset := meta.Offset()
	if offset >= len(all) {
		return []Product{}, meta, nil
	}
	items := all[offset:]
	if len(items) > meta.PerPage {
		items = items[:meta.PerPage]
	}
	return items, meta, nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// AdjustStock applies a manual relative stock adjustment. Manual adjustments
// always honour the non-negative floor.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) error {
	if delta == 0 {
		return fmt.Errorf("catalog: adjust stock: zero delta: %w", shared.ErrInvalidState)
	}
	return s.repo.AdjustStock(ctx, id, delta, true)
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: invalid price %q: %w", raw, shared.ErrConstraintViolation)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("catalog: negative price: %w", shared.ErrConstraintViolation)
	}
	return price, nil
}
