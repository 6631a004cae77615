// Package pricing turns a subtotal and discount into tax and total figures.
// All arithmetic runs at full precision; figures are rounded to cents only
// once, in Rounded, and those rounded values never feed back into math.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const centsPlaces = 2

// TaxComponent is one named rate of a tax plan, e.g. federal or provincial.
type TaxComponent struct {
	Name string
	Rate decimal.Decimal
}

// TaxPlan is the ordered list of components applied to the taxable amount.
type TaxPlan struct {
	Components []TaxComponent
}

// Flat is the register configuration: a single tax rate.
func Flat(rate decimal.Decimal) TaxPlan {
	return TaxPlan{Components: []TaxComponent{{Name: "tax", Rate: rate}}}
}

// Split is the storefront configuration: federal plus provincial components
// reported separately but summed into the same total.
func Split(federal, provincial decimal.Decimal) TaxPlan {
	return TaxPlan{Components: []TaxComponent{
		{Name: "federal", Rate: federal},
		{Name: "provincial", Rate: provincial},
	}}
}

// Rate returns the combined rate of every component.
func (p TaxPlan) Rate() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Components {
		total = total.Add(c.Rate)
	}
	return total
}

// Validate rejects negative or unnamed components.
func (p TaxPlan) Validate() error {
	if len(p.Components) == 0 {
		return fmt.Errorf("tax plan has no components")
	}
	for _, c := range p.Components {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("tax component name required")
		}
		if c.Rate.IsNegative() {
			return fmt.Errorf("tax component %s has negative rate", c.Name)
		}
	}
	return nil
}

// ComponentAmount is the tax charged by one component.
type ComponentAmount struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Totals holds the unrounded results of Compute.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Taxable    decimal.Decimal
	Components []ComponentAmount
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

// Compute applies the discount and tax plan to a subtotal.
func Compute(subtotal, discount decimal.Decimal, plan TaxPlan) Totals {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	components := make([]ComponentAmount, 0, len(plan.Components))
	tax := decimal.Zero
	for _, c := range plan.Components {
		amount := taxable.Mul(c.Rate)
		components = append(components, ComponentAmount{Name: c.Name, Rate: c.Rate, Amount: amount})
		tax = tax.Add(amount)
	}

	return Totals{
		Subtotal:   subtotal,
		Discount:   discount,
		Taxable:    taxable,
		Components: components,
		Tax:        tax,
		Total:      taxable.Add(tax),
	}
}

// Figures are the cent-rounded values shown to the operator and persisted.
type Figures struct {
	Subtotal   decimal.Decimal   `json:"subtotal"`
	Discount   decimal.Decimal   `json:"discount"`
	Taxable    decimal.Decimal   `json:"taxable"`
	Components []ComponentAmount `json:"tax_components"`
	Tax        decimal.Decimal   `json:"tax"`
	Total      decimal.Decimal   `json:"total"`
}

// Rounded produces each figure from its full-precision value. Total is rounded
// from the unrounded total, not summed from rounded parts.
func (t Totals) Rounded() Figures {
	components := make([]ComponentAmount, len(t.Components))
	for i, c := range t.Components {
		components[i] = ComponentAmount{Name: c.Name, Rate: c.Rate, Amount: Round(c.Amount)}
	}
	return Figures{
		Subtotal:   Round(t.Subtotal),
		Discount:   Round(t.Discount),
		Taxable:    Round(t.Taxable),
		Components: components,
		Tax:        Round(t.Tax),
		Total:      Round(t.Total),
	}
}

// Change returns the change due against the displayed (rounded) total, or false
// when tendered is short of it.
func Change(tendered, total decimal.Decimal) (decimal.Decimal, bool) {
	roundedTotal := Round(total)
	if tendered.LessThan(roundedTotal) {
		return decimal.Zero, false
	}
	return Round(tendered.Sub(roundedTotal)), true
}

// Round rounds half away from zero to cents.
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(centsPlaces)
}

// Cents converts a rounded amount to integer minor units for gateways.
func Cents(value decimal.Decimal) int64 {
	return Round(value).Shift(centsPlaces).IntPart()
}
