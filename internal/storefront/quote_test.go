package storefront

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubProducts map[string]models.Product

func (s stubProducts) ReadProduct(_ context.Context, ref catalog.ProductRef) (*models.Product, error) {
	for _, p := range s {
		if (ref.ID != nil && *ref.ID == p.ID) || ref.SKU == p.SKU {
			out := p
			return &out, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type stubDiscounts struct{}

func (stubDiscounts) Validate(_ context.Context, code string, subtotal decimal.Decimal) (discounts.Applied, error) {
	if discounts.NormalizeCode(code) != "SAVE10" {
		return discounts.Applied{}, pkgerrors.New(pkgerrors.CodeValidation, "discount code is not valid")
	}
	return discounts.Applied{
		Code:   "SAVE10",
		Type:   enums.DiscountTypePercentage,
		Value:  dec("10"),
		Amount: discounts.Amount(enums.DiscountTypePercentage, dec("10"), subtotal),
	}, nil
}

type splitPlan struct{}

func (splitPlan) StorefrontPlan(context.Context) (pricing.TaxPlan, error) {
	return pricing.Split(dec("0.05"), dec("0.08")), nil
}

func (splitPlan) ReadCurrency(context.Context) (string, error) { return "CAD", nil }

func newQuoteService(t *testing.T) (Service, models.Product) {
	t.Helper()
	size, color := "M", "BLACK"
	abaya := models.Product{
		ID:        uuid.New(),
		SKU:       "MA-ABA-BLK-0001",
		Name:      "Linen Abaya",
		UnitPrice: dec("42.00"),
		Stock:     5,
		Size:      &size,
		Color:     &color,
		IsActive:  true,
	}
	svc, err := NewService(stubProducts{abaya.SKU: abaya}, stubDiscounts{}, splitPlan{}, nil)
	require.NoError(t, err)
	return svc, abaya
}

func TestQuoteSplitsTax(t *testing.T) {
	svc, abaya := newQuoteService(t)

	quote, err := svc.Quote(context.Background(), QuoteInput{Items: []Item{{SKU: abaya.SKU, Quantity: 2}}})
	require.NoError(t, err)

	require.Len(t, quote.Figures.Components, 2)
	assert.Equal(t, "federal", quote.Figures.Components[0].Name)
	assert.Equal(t, "4.20", quote.Figures.Components[0].Amount.StringFixed(2))
	assert.Equal(t, "provincial", quote.Figures.Components[1].Name)
	assert.Equal(t, "6.72", quote.Figures.Components[1].Amount.StringFixed(2))
	assert.Equal(t, "10.92", quote.Figures.Tax.StringFixed(2))
	assert.Equal(t, "94.92", quote.Figures.Total.StringFixed(2))
	assert.Equal(t, "CAD", quote.Currency)
	assert.Nil(t, quote.Discount)
}

func TestQuoteMergesVariantsAndAppliesDiscount(t *testing.T) {
	svc, abaya := newQuoteService(t)

	quote, err := svc.Quote(context.Background(), QuoteInput{
		Items: []Item{
			{SKU: abaya.SKU, Quantity: 1},
			{ProductID: &abaya.ID, Quantity: 1},
		},
		DiscountCode: " save10 ",
	})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	assert.Equal(t, 2, quote.Lines[0].Quantity)
	require.NotNil(t, quote.Discount)
	assert.Equal(t, "8.40", quote.Figures.Discount.StringFixed(2))
	assert.Equal(t, "75.60", quote.Figures.Taxable.StringFixed(2))
	assert.Equal(t, "9.83", quote.Figures.Tax.StringFixed(2))
	assert.Equal(t, "85.43", quote.Figures.Total.StringFixed(2))
}

func TestQuoteRejections(t *testing.T) {
	svc, abaya := newQuoteService(t)
	ctx := context.Background()

	_, err := svc.Quote(ctx, QuoteInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Quote(ctx, QuoteInput{Items: []Item{{SKU: abaya.SKU, Quantity: 6}}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, cart.ReasonOutOfStock, details["reason"])

	_, err = svc.Quote(ctx, QuoteInput{Items: []Item{{SKU: "MA-NOPE-0001", Quantity: 1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Quote(ctx, QuoteInput{Items: []Item{{SKU: abaya.SKU, Quantity: 1}}, DiscountCode: "BOGUS"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, stubDiscounts{}, splitPlan{}, nil)
	assert.Error(t, err)
	_, err = NewService(stubProducts{}, nil, splitPlan{}, nil)
	assert.Error(t, err)
	_, err = NewService(stubProducts{}, stubDiscounts{}, nil, nil)
	assert.Error(t, err)
}
