package receipts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// Line is one printed item.
type Line struct {
	Name      string
	Detail    string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// Receipt holds every figure printed on the slip.
type Receipt struct {
	Store        settings.StoreProfile
	OrderNumber  int64
	RegisterID   string
	Cashier      string
	IssuedAt     time.Time
	Currency     string
	Lines        []Line
	Subtotal     decimal.Decimal
	DiscountCode string
	Discount     decimal.Decimal
	Taxes        []pricing.ComponentAmount
	Tax          decimal.Decimal
	Total        decimal.Decimal
	Method       enums.PaymentMethod
	Tendered     *decimal.Decimal
	Change       *decimal.Decimal
}

// FromOrder builds a receipt from a persisted order and its line items.
func FromOrder(order *models.Order, store settings.StoreProfile, cashier string) (Receipt, error) {
	r := Receipt{
		Store:       store,
		OrderNumber: order.OrderNumber,
		RegisterID:  order.RegisterID,
		Cashier:     cashier,
		IssuedAt:    order.CreatedAt,
		Currency:    order.Currency,
		Subtotal:    order.Subtotal,
		Discount:    order.DiscountAmount,
		Tax:         order.Tax,
		Total:       order.Total,
		Method:      order.PaymentMethod,
	}
	if order.DiscountCode != nil {
		r.DiscountCode = *order.DiscountCode
	}
	if len(order.TaxComponents) > 0 {
		if err := json.Unmarshal(order.TaxComponents, &r.Taxes); err != nil {
			return Receipt{}, fmt.Errorf("decode tax components: %w", err)
		}
	}
	if order.AmountTendered.Valid {
		v := order.AmountTendered.Decimal
		r.Tendered = &v
	}
	if order.ChangeDue.Valid {
		v := order.ChangeDue.Decimal
		r.Change = &v
	}
	for _, item := range order.LineItems {
		r.Lines = append(r.Lines, Line{
			Name:      item.Name,
			Detail:    detail(item.SKU, item.VariantKey),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    item.LineTotal,
		})
	}
	return r, nil
}

// Render lays the receipt out as newline separated 48 character lines.
func (r Receipt) Render() string {
	var out []string
	out = append(out, r.header()...)
	out = append(out, r.items()...)
	out = append(out, r.totals()...)
	out = append(out, r.payment()...)
	out = append(out, r.footer()...)
	return strings.Join(out, "\n") + "\n"
}

func (r Receipt) header() []string {
	lines := []string{center(strings.ToUpper(r.Store.Name))}
	for _, v := range []string{r.Store.Address, r.Store.Phone} {
		if strings.TrimSpace(v) != "" {
			lines = append(lines, center(v))
		}
	}
	if strings.TrimSpace(r.Store.TaxID) != "" {
		lines = append(lines, center("Tax ID "+r.Store.TaxID))
	}
	lines = append(lines, heavyRule,
		labelValue(fmt.Sprintf("Order #%06d", r.OrderNumber), r.IssuedAt.Format("2006-01-02 15:04")),
		labelValue("Register "+r.RegisterID, r.Cashier),
	)
	return lines
}

func (r Receipt) items() []string {
	lines := []string{lightRule}
	lines = append(lines, itemRows("ITEM", "QTY", "UNIT", "AMOUNT")...)
	lines = append(lines, lightRule)
	for _, l := range r.Lines {
		lines = append(lines, itemRows(l.Name, strconv.Itoa(l.Quantity), money(l.UnitPrice), money(l.Amount))...)
		if l.Detail != "" {
			lines = append(lines, "  "+clip(l.Detail, LineWidth-2))
		}
	}
	return lines
}

func (r Receipt) totals() []string {
	lines := []string{lightRule, labelValue("Subtotal", money(r.Subtotal))}
	if r.Discount.IsPositive() {
		label := "Discount"
		if r.DiscountCode != "" {
			label += " (" + r.DiscountCode + ")"
		}
		lines = append(lines, labelValue(label, "-"+money(r.Discount)))
	}
	for _, c := range r.Taxes {
		lines = append(lines, labelValue(taxLabel(c), money(c.Amount)))
	}
	if len(r.Taxes) != 1 {
		lines = append(lines, labelValue("Tax", money(r.Tax)))
	}
	lines = append(lines, labelValue("TOTAL "+r.Currency, money(r.Total)))
	return lines
}

func (r Receipt) payment() []string {
	lines := []string{lightRule, labelValue("Payment", strings.ToUpper(string(r.Method)))}
	if r.Tendered != nil {
		lines = append(lines, labelValue("Tendered", money(*r.Tendered)))
	}
	if r.Change != nil {
		lines = append(lines, labelValue("Change", money(*r.Change)))
	}
	return lines
}

func (r Receipt) footer() []string {
	lines := []string{heavyRule}
	if strings.TrimSpace(r.Store.Footer) != "" {
		lines = append(lines, center(r.Store.Footer))
	}
	return lines
}

func taxLabel(c pricing.ComponentAmount) string {
	name := c.Name
	switch name {
	case "tax":
		name = "Tax"
	case "federal":
		name = "Federal tax"
	case "provincial":
		name = "Provincial tax"
	}
	return name + " " + percent(c.Rate)
}

func detail(sku, variantKey string) string {
	parts := []string{sku}
	size, color, _ := strings.Cut(variantKey, "|")
	var variant []string
	for _, v := range []string{size, color} {
		if v != "" {
			variant = append(variant, strings.ToUpper(v))
		}
	}
	if len(variant) > 0 {
		parts = append(parts, strings.Join(variant, " / "))
	}
	return strings.TrimSpace(strings.Join(parts, "  "))
}
