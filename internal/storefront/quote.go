// Package storefront prices a web checkout with the split federal and
// provincial tax plan. It shares the cart ledger and pricing engine with the
// register so both surfaces agree on every cent.
package storefront

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

const maxItems = 100

type productReader interface {
	ReadProduct(ctx context.Context, ref catalog.ProductRef) (*models.Product, error)
}

type discountValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (discounts.Applied, error)
}

type planReader interface {
	StorefrontPlan(ctx context.Context) (pricing.TaxPlan, error)
	ReadCurrency(ctx context.Context) (string, error)
}

// Item is one requested variant, addressed by id or SKU.
type Item struct {
	ProductID *uuid.UUID
	SKU       string
	Quantity  int
}

// QuoteInput is the storefront basket.
type QuoteInput struct {
	Items        []Item
	DiscountCode string
}

// Quote is the priced basket.
type Quote struct {
	Lines    []cart.Line
	Discount *discounts.Applied
	Figures  pricing.Figures
	Currency string
}

// Service prices storefront baskets.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (Quote, error)
}

type service struct {
	products  productReader
	discounts discountValidator
	plans     planReader
	now       func() time.Time
	logg      *logger.Logger
}

// NewService wires the quote service.
func NewService(products productReader, discounts discountValidator, plans planReader, logg *logger.Logger) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if discounts == nil {
		return nil, fmt.Errorf("discount validator required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plan reader required")
	}
	return &service{products: products, discounts: discounts, plans: plans, now: time.Now, logg: logg}, nil
}

// Quote reads each variant fresh, applies the stock ceiling and prices the
// result. A rejected discount code fails the whole quote.
func (s *service) Quote(ctx context.Context, input QuoteInput) (Quote, error) {
	if len(input.Items) == 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if len(input.Items) > maxItems {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "too many items").WithDetail("max", maxItems)
	}

	ledger := cart.New()
	now := s.now()
	for _, item := range input.Items {
		ref := catalog.ProductRef{ID: item.ProductID, SKU: strings.TrimSpace(item.SKU)}
		product, err := s.products.ReadProduct(ctx, ref)
		if err != nil {
			return Quote{}, err
		}
		if _, err := ledger.Add(cart.SnapshotFromProduct(product, now), item.Quantity); err != nil {
			return Quote{}, err
		}
	}

	subtotal := ledger.Subtotal()
	var applied *discounts.Applied
	if code := strings.TrimSpace(input.DiscountCode); code != "" {
		d, err := s.discounts.Validate(ctx, code, subtotal)
		if err != nil {
			return Quote{}, err
		}
		applied = &d
	}

	plan, err := s.plans.StorefrontPlan(ctx)
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read storefront tax plan")
	}
	currency, err := s.plans.ReadCurrency(ctx)
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read currency")
	}

	discount := decimal.Zero
	if applied != nil {
		discount = applied.Amount
	}
	figures := pricing.Compute(subtotal, discount, plan).Rounded()

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"line_count": len(ledger.Lines()),
			"total":      figures.Total.StringFixed(2),
		})
		s.logg.Debug(logCtx, "storefront.quote")
	}

	return Quote{
		Lines:    ledger.Lines(),
		Discount: applied,
		Figures:  figures,
		Currency: currency,
	}, nil
}
