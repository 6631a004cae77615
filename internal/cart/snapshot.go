package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is the read-only view of a variant taken when it is scanned.
type Snapshot struct {
	ProductID uuid.UUID
	SKU       string
	Name      string
	Size      string
	Color     string
	UnitPrice decimal.Decimal
	Stock     int
}

// VariantKey is the size+color signature that distinguishes lines of one product.
func (s Snapshot) VariantKey() string {
	return VariantKey(s.Size, s.Color)
}

// VariantKey normalizes a size/color pair into a line signature.
func VariantKey(size, color string) string {
	return strings.ToLower(strings.TrimSpace(size)) + "|" + strings.ToLower(strings.TrimSpace(color))
}

// SnapshotFromProduct captures stock and the effective unit price at now.
func SnapshotFromProduct(p *models.Product, now time.Time) Snapshot {
	return Snapshot{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Size:      deref(p.Size),
		Color:     deref(p.Color),
		UnitPrice: ResolveUnitPrice(p, now),
		Stock:     p.Stock,
	}
}

// ResolveUnitPrice picks the manual discount price, else the active sale price,
// else the base price. The result is the per-unit price shown on the line.
func ResolveUnitPrice(p *models.Product, now time.Time) decimal.Decimal {
	if p.DiscountPrice.Valid && !p.DiscountPrice.Decimal.IsNegative() {
		return p.DiscountPrice.Decimal
	}
	if p.Sale != nil && p.Sale.ActiveAt(now) && p.Sale.PercentOff.IsPositive() {
		pct := decimal.Min(p.Sale.PercentOff, hundred)
		off := p.UnitPrice.Mul(pct).Div(hundred)
		return p.UnitPrice.Sub(off).Round(2)
	}
	return p.UnitPrice
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
