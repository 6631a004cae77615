package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeFlatRegisterTax(t *testing.T) {
	totals := Compute(dec("100"), dec("10"), Flat(dec("0.13")))
	figures := totals.Rounded()

	assert.Equal(t, "90.00", figures.Taxable.StringFixed(2))
	assert.Equal(t, "11.70", figures.Tax.StringFixed(2))
	assert.Equal(t, "101.70", figures.Total.StringFixed(2))
	require.Len(t, figures.Components, 1)
}

func TestComputeDiscountAboveSubtotalZeroesTaxable(t *testing.T) {
	figures := Compute(dec("100"), dec("150"), Flat(dec("0.13"))).Rounded()

	assert.Equal(t, "100.00", figures.Discount.StringFixed(2))
	assert.True(t, figures.Taxable.IsZero())
	assert.True(t, figures.Total.IsZero())
}

func TestComputeSplitTaxSumsIntoTotal(t *testing.T) {
	totals := Compute(dec("80"), decimal.Zero, Split(dec("0.05"), dec("0.08")))
	figures := totals.Rounded()

	require.Len(t, figures.Components, 2)
	assert.Equal(t, "federal", figures.Components[0].Name)
	assert.Equal(t, "4.00", figures.Components[0].Amount.StringFixed(2))
	assert.Equal(t, "6.40", figures.Components[1].Amount.StringFixed(2))
	assert.Equal(t, "10.40", figures.Tax.StringFixed(2))
	assert.Equal(t, "90.40", figures.Total.StringFixed(2))

	flat := Compute(dec("80"), decimal.Zero, Flat(dec("0.13"))).Rounded()
	assert.True(t, flat.Total.Equal(figures.Total))
}

func TestRoundingHappensOnceAtTheEnd(t *testing.T) {
	totals := Compute(dec("10.005"), decimal.Zero, Split(dec("0.05"), dec("0.08")))
	figures := totals.Rounded()

	assert.Equal(t, "11.31", figures.Total.StringFixed(2))
	assert.Equal(t, "11.305650", totals.Total.StringFixed(6))
}

func TestChange(t *testing.T) {
	change, ok := Change(dec("50.00"), dec("42.37"))
	require.True(t, ok)
	assert.Equal(t, "7.63", change.StringFixed(2))

	_, ok = Change(dec("40.00"), dec("42.37"))
	assert.False(t, ok)

	change, ok = Change(dec("42.37"), dec("42.3650"))
	require.True(t, ok)
	assert.True(t, change.IsZero())
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(10170), Cents(dec("101.7")))
	assert.Equal(t, int64(4237), Cents(dec("42.365")))
}

func TestTaxPlanValidate(t *testing.T) {
	assert.NoError(t, Flat(dec("0.13")).Validate())
	assert.Error(t, TaxPlan{}.Validate())
	assert.Error(t, Flat(dec("-0.01")).Validate())
	assert.Equal(t, "0.13", Split(dec("0.05"), dec("0.08")).Rate().String())
}
