package receipts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder(t *testing.T) *models.Order {
	t.Helper()
	components, err := json.Marshal([]pricing.ComponentAmount{{Name: "tax", Rate: d("0.13"), Amount: d("11.70")}})
	require.NoError(t, err)
	code := "SAVE10"
	return &models.Order{
		ID:             uuid.New(),
		OrderNumber:    42,
		RegisterID:     "front-1",
		StaffID:        uuid.New(),
		Currency:       "CAD",
		Subtotal:       d("100.00"),
		DiscountCode:   &code,
		DiscountAmount: d("10.00"),
		TaxableAmount:  d("90.00"),
		Tax:            d("11.70"),
		TaxComponents:  components,
		Total:          d("101.70"),
		PaymentMethod:  enums.PaymentMethodCash,
		AmountTendered: decimal.NewNullDecimal(d("120.00")),
		ChangeDue:      decimal.NewNullDecimal(d("18.30")),
		CreatedAt:      time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC),
		LineItems: []models.OrderLineItem{
			{SKU: "MA-ABA-BLK-00001", Name: "Linen wrap dress with an extremely long name", VariantKey: "m|black", UnitPrice: d("60.00"), Quantity: 1, LineTotal: d("60.00")},
			{SKU: "MA-ACC-00007", Name: "Silk scarf", VariantKey: "|", UnitPrice: d("20.00"), Quantity: 2, LineTotal: d("40.00")},
		},
	}
}

var profile = settings.StoreProfile{Name: "Maison", Address: "12 Rue Saint-Denis", Phone: "514-555-0101", TaxID: "123456789RT0001", Footer: "Thank you"}

func TestRenderKeepsEveryLineWithinWidth(t *testing.T) {
	r, err := FromOrder(sampleOrder(t), profile, "Amelie")
	require.NoError(t, err)
	out := r.Render()

	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), LineWidth, "line %q", line)
	}
	assert.Equal(t, 24, NameWidth)
	assert.Equal(t, LineWidth, NameWidth+QtyWidth+UnitWidth+AmountWidth)
}

func TestRenderBlocks(t *testing.T) {
	r, err := FromOrder(sampleOrder(t), profile, "Amelie")
	require.NoError(t, err)
	out := r.Render()

	assert.Contains(t, out, center("MAISON"))
	assert.Contains(t, out, "Order #000042")
	assert.Contains(t, out, "2026-03-02 14:05")
	assert.Contains(t, out, labelValue("Subtotal", "100.00"))
	assert.Contains(t, out, labelValue("Discount (SAVE10)", "-10.00"))
	assert.Contains(t, out, labelValue("Tax 13%", "11.70"))
	assert.Contains(t, out, labelValue("TOTAL CAD", "101.70"))
	assert.Contains(t, out, labelValue("Tendered", "120.00"))
	assert.Contains(t, out, labelValue("Change", "18.30"))
	assert.Contains(t, out, "  MA-ABA-BLK-00001  M / BLACK")
	assert.NotContains(t, out, "MA-ACC-00007  ")

	itemLine := "Linen wrap dress with a        1   60.00   60.00"
	assert.Contains(t, out, itemLine)
	assert.Len(t, itemLine, LineWidth)
	assert.Less(t, strings.Index(out, "ITEM"), strings.Index(out, "Subtotal"))
	assert.Less(t, strings.Index(out, "Subtotal"), strings.Index(out, "Payment"))
	assert.True(t, strings.HasSuffix(out, center("Thank you")+"\n"))
}

func TestRenderSplitTaxAndCard(t *testing.T) {
	order := sampleOrder(t)
	components, err := json.Marshal([]pricing.ComponentAmount{
		{Name: "federal", Rate: d("0.05"), Amount: d("4.50")},
		{Name: "provincial", Rate: d("0.09975"), Amount: d("8.98")},
	})
	require.NoError(t, err)
	order.TaxComponents = components
	order.Tax = d("13.48")
	order.PaymentMethod = enums.PaymentMethodCard
	order.AmountTendered = decimal.NullDecimal{}
	order.ChangeDue = decimal.NullDecimal{}

	r, err := FromOrder(order, profile, "")
	require.NoError(t, err)
	out := r.Render()
	assert.Contains(t, out, labelValue("Federal tax 5%", "4.50"))
	assert.Contains(t, out, labelValue("Provincial tax 9.975%", "8.98"))
	assert.Contains(t, out, labelValue("Tax", "13.48"))
	assert.Contains(t, out, labelValue("Payment", "CARD"))
	assert.NotContains(t, out, "Tendered")
}

func TestLabelValueClipsLongLabels(t *testing.T) {
	line := labelValue(strings.Repeat("x", 60), "1234.56")
	assert.Len(t, line, LineWidth)
	assert.True(t, strings.HasSuffix(line, " 1234.56"))
}

func TestRenderWideFiguresMoveToContinuationLine(t *testing.T) {
	r := Receipt{Lines: []Line{
		{Name: "Silk Abaya", Quantity: 1, UnitPrice: d("1234.56"), Amount: d("1234.56")},
		{Name: "Cashmere Coat", Quantity: 1, UnitPrice: d("12345.67"), Amount: d("12345.67")},
		{Name: "Bridal Kaftan", Quantity: 10, UnitPrice: d("12345.67"), Amount: d("123456.70")},
	}}
	out := r.Render()

	assert.Contains(t, out, "Silk Abaya                     1 1234.56 1234.56")
	assert.Contains(t, out, "\nCashmere Coat\n"+labelValue("  1 x 12345.67", "12345.67")+"\n")
	assert.Contains(t, out, "\nBridal Kaftan\n"+labelValue("  10 x 12345.67", "123456.70")+"\n")
	assert.NotContains(t, out, "12345.67123456")
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), LineWidth, "line %q", line)
	}
}

type stubOrders struct{ order *models.Order }

func (s stubOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

type stubStaff struct{}

func (stubStaff) FindByID(context.Context, uuid.UUID) (*models.Staff, error) {
	return &models.Staff{DisplayName: "Bruno"}, nil
}

type stubProfile struct{}

func (stubProfile) ReadStoreProfile(context.Context) (settings.StoreProfile, error) { return profile, nil }

func TestServiceRender(t *testing.T) {
	order := sampleOrder(t)
	svc, err := NewService(stubOrders{order: order}, stubStaff{}, stubProfile{})
	require.NoError(t, err)

	out, err := svc.Render(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Bruno")

	_, err = svc.Render(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
