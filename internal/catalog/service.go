package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/internal/sku"
	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
	"github.com/angelmondragon/maison-pos/pkg/outbox/payloads"
)

const (
	productSKUConstraint = "products_sku_key"
	// SQLite names the column rather than the constraint.
	productSKUColumn = "products.sku"
)

// Service exposes the product reads the register needs plus SKU-allocating creation.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*CreateProductResult, error)
	ReadProduct(ctx context.Context, ref ProductRef) (*models.Product, error)
	ListVariants(ctx context.Context, name string, categoryID uuid.UUID) ([]models.Product, error)
}

// CreateProductInput holds the validated payload to create a variant.
type CreateProductInput struct {
	Name          string
	CategoryID    *uuid.UUID
	UnitPrice     decimal.Decimal
	DiscountPrice *decimal.Decimal
	SaleID        *uuid.UUID
	Stock         int
	Size          *string
	Color         *string
	Material      *string
}

// CreateProductResult returns the stored variant and whether its SKU is a fallback.
type CreateProductResult struct {
	Product     *models.Product
	SKUDegraded bool
}

// ProductRef addresses a variant by id or scanned SKU.
type ProductRef struct {
	ID  *uuid.UUID
	SKU string
}

type skuGenerator interface {
	Generate(ctx context.Context, categoryID *uuid.UUID) (sku.Result, error)
	Backend() string
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	skus     skuGenerator
	outbox   outbox.Emitter
	metrics  *metrics.RegisterMetrics
	logg     *logger.Logger
}

// NewService constructs the catalog service.
func NewService(repo *Repository, dbClient *db.Client, skus skuGenerator, emitter outbox.Emitter, m *metrics.RegisterMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if skus == nil {
		return nil, fmt.Errorf("sku generator required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		skus:     skus,
		outbox:   emitter,
		metrics:  m,
		logg:     logg,
	}, nil
}

// CreateProduct allocates a SKU and stores the variant. A duplicate SKU on insert
// triggers exactly one fresh allocation before failing with CONFLICT.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*CreateProductResult, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		allocated, err := s.skus.Generate(ctx, input.CategoryID)
		if err != nil {
			return nil, err
		}

		product, err := s.insert(ctx, input, allocated)
		if err == nil {
			return &CreateProductResult{Product: product, SKUDegraded: allocated.Degraded}, nil
		}
		if !isDuplicateSKU(err) {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}

		lastErr = err
		s.metrics.IncSKUAllocation(s.skus.Backend(), "duplicate")
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"sku":     allocated.SKU,
				"attempt": attempt + 1,
			}), "duplicate sku detected on insert")
		}
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "sku allocation collided twice").
		WithDetails(map[string]any{"constraint": productSKUConstraint})
}

func (s *service) insert(ctx context.Context, input CreateProductInput, allocated sku.Result) (*models.Product, error) {
	if input.CategoryID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	product := &models.Product{
		SKU:        allocated.SKU,
		Name:       strings.TrimSpace(input.Name),
		CategoryID: *input.CategoryID,
		UnitPrice:  input.UnitPrice,
		SaleID:     input.SaleID,
		Stock:      input.Stock,
		Size:       trimmedPtr(input.Size),
		Color:      trimmedPtr(input.Color),
		Material:   trimmedPtr(input.Material),
		IsActive:   true,
	}
	if input.DiscountPrice != nil {
		product.DiscountPrice = decimal.NewNullDecimal(*input.DiscountPrice)
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).CreateProduct(ctx, product); err != nil {
			return err
		}
		if !allocated.Degraded {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSKUFallbackIssued,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Data: payloads.SKUFallbackIssuedEvent{
				ProductID:  product.ID,
				SKU:        product.SKU,
				CategoryID: input.CategoryID,
				Reason:     allocated.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ReadProduct resolves a variant by id (preferred) or SKU.
func (s *service) ReadProduct(ctx context.Context, ref ProductRef) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	switch {
	case ref.ID != nil && *ref.ID != uuid.Nil:
		product, err = s.repo.FindProductByID(ctx, *ref.ID)
	case strings.TrimSpace(ref.SKU) != "":
		product, err = s.repo.FindProductBySKU(ctx, ref.SKU)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id or sku is required")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// ListVariants returns the size/color picker rows for a product name.
func (s *service) ListVariants(ctx context.Context, name string, categoryID uuid.UUID) ([]models.Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if categoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	rows, err := s.repo.ListVariantsByName(ctx, name, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variants")
	}
	return rows, nil
}

func validateCreate(input CreateProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.CategoryID == nil || *input.CategoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	if input.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price must be non-negative")
	}
	if input.DiscountPrice != nil && input.DiscountPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_price must be non-negative")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	return nil
}

func isDuplicateSKU(err error) bool {
	return db.IsUniqueViolation(err, productSKUConstraint) || db.IsUniqueViolation(err, productSKUColumn)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
