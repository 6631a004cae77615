// Package cart holds the in-memory line ledger of one register checkout.
//
// A Ledger is not safe for concurrent use; the register serializes access.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// Validation reasons attached to cart errors.
const (
	ReasonOutOfStock      = "out_of_stock"
	ReasonInvalidQuantity = "invalid_quantity"
)

// Line is one product variant in the cart. Quantity stays within [1, Ceiling].
type Line struct {
	ProductID  uuid.UUID
	VariantKey string
	SKU        string
	Name       string
	Size       string
	Color      string
	UnitPrice  decimal.Decimal
	Quantity   int
	Ceiling    int
}

// Total is the unrounded line amount.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger is the ordered list of cart lines.
type Ledger struct {
	lines []*Line
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Add creates a line or increments an existing one for the same variant. The
// stock ceiling refreshes from the snapshot only when the increment fits.
func (l *Ledger) Add(s Snapshot, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, invalidQuantity(qty)
	}
	key := s.VariantKey()
	if existing := l.find(s.ProductID, key); existing != nil {
		if existing.Quantity+qty > s.Stock {
			return Line{}, outOfStock(s, existing.Quantity, qty)
		}
		existing.Quantity += qty
		existing.Ceiling = s.Stock
		return *existing, nil
	}
	if s.Stock < qty {
		return Line{}, outOfStock(s, 0, qty)
	}
	line := &Line{
		ProductID:  s.ProductID,
		VariantKey: key,
		SKU:        s.SKU,
		Name:       s.Name,
		Size:       s.Size,
		Color:      s.Color,
		UnitPrice:  s.UnitPrice,
		Quantity:   qty,
		Ceiling:    s.Stock,
	}
	l.lines = append(l.lines, line)
	return *line, nil
}

// Adjust moves a line's quantity by delta, clamped to [1, ceiling].
func (l *Ledger) Adjust(productID uuid.UUID, variantKey string, delta int) (Line, error) {
	line := l.find(productID, variantKey)
	if line == nil {
		return Line{}, lineNotFound(productID, variantKey)
	}
	// Compared against the room left so an extreme delta cannot overflow.
	switch {
	case delta >= line.Ceiling-line.Quantity:
		line.Quantity = line.Ceiling
	case delta <= 1-line.Quantity:
		line.Quantity = 1
	default:
		line.Quantity += delta
	}
	return *line, nil
}

// Remove deletes a line.
func (l *Ledger) Remove(productID uuid.UUID, variantKey string) error {
	for i, line := range l.lines {
		if line.ProductID == productID && line.VariantKey == variantKey {
			l.lines = append(l.lines[:i], l.lines[i+1:]...)
			return nil
		}
	}
	return lineNotFound(productID, variantKey)
}

// Subtotal sums each line's price snapshot times quantity at full precision.
func (l *Ledger) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.Total())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	for i, line := range l.lines {
		out[i] = *line
	}
	return out
}

// ItemCount is the number of units across all lines.
func (l *Ledger) ItemCount() int {
	count := 0
	for _, line := range l.lines {
		count += line.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (l *Ledger) IsEmpty() bool {
	return len(l.lines) == 0
}

// Clear drops every line.
func (l *Ledger) Clear() {
	l.lines = nil
}

func (l *Ledger) find(productID uuid.UUID, variantKey string) *Line {
	for _, line := range l.lines {
		if line.ProductID == productID && line.VariantKey == variantKey {
			return line
		}
	}
	return nil
}

func outOfStock(s Snapshot, inCart, requested int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "not enough stock for "+s.Name).WithDetails(map[string]any{
		"reason":    ReasonOutOfStock,
		"sku":       s.SKU,
		"available": s.Stock,
		"in_cart":   inCart,
		"requested": requested,
	})
}

func invalidQuantity(qty int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").WithDetails(map[string]any{
		"reason":   ReasonInvalidQuantity,
		"quantity": qty,
	})
}

func lineNotFound(productID uuid.UUID, variantKey string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").WithDetails(map[string]any{
		"product_id":  productID.String(),
		"variant_key": variantKey,
	})
}
