package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/shopspring/decimal"
)

// CatalogStore defines the DB methods needed by the product catalog.
// Satisfied by every database.Querier.
type CatalogStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetProductByDescription(ctx context.Context, description string) (database.Product, error)
}

// RegisterProductRequest is the input for registering a product.
type RegisterProductRequest struct {
	Description string
	UnitWeight  decimal.Decimal
	WeightMode  string
}

// CatalogService registers and resolves products.
type CatalogService struct {
	store CatalogStore
	audit Recorder
}

func NewCatalogService(store CatalogStore, audit Recorder) *CatalogService {
	return &CatalogService{store: store, audit: audit}
}

// Register appends a product. Duplicate descriptions are accepted; lookups
// resolve to the first one registered.
func (s *CatalogService) Register(ctx context.Context, actor Actor, req RegisterProductRequest) (database.Product, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return database.Product{}, apperr.Validation(0, "", "description is required")
	}
	if req.UnitWeight.IsNegative() {
		return database.Product{}, apperr.Validation(0, desc, "unit_weight must be >= 0")
	}
	mode, err := parseWeightMode(req.WeightMode)
	if err != nil {
		return database.Product{}, apperr.Validation(0, desc, "%v", err)
	}

	p, err := s.store.CreateProduct(ctx, database.CreateProductParams{
		Description: desc,
		UnitWeight:  req.UnitWeight.Round(database.WeightPlaces),
		WeightMode:  mode,
	})
	if err != nil {
		return database.Product{}, apperr.Storage(0, desc, err)
	}

	s.audit.Record(ctx, actor, enum.AuditProductRegistered,
		fmt.Sprintf("%s (%s, %s kg)", p.Description, p.WeightMode, p.UnitWeight.StringFixed(database.WeightPlaces)))
	return p, nil
}

// Resolve returns the first product registered under description.
func (s *CatalogService) Resolve(ctx context.Context, description string) (database.Product, error) {
	p, err := s.store.GetProductByDescription(ctx, description)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return database.Product{}, apperr.NotFound(0, description, "product is not in the catalog")
		}
		return database.Product{}, apperr.Storage(0, description, err)
	}
	return p, nil
}

func (s *CatalogService) List(ctx context.Context) ([]database.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, apperr.Storage(0, "", err)
	}
	return products, nil
}

func parseWeightMode(s string) (database.WeightMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", enum.WeightModeFixed:
		return database.WeightModeFIXED, nil
	case enum.WeightModeVariable:
		return database.WeightModeVARIABLE, nil
	}
	return "", fmt.Errorf("weight_mode must be FIXED or VARIABLE, got %q", s)
}
