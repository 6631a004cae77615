package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// Payment describes the settled attempt an order records.
type Payment struct {
	AttemptID uuid.UUID
	Method    enums.PaymentMethod
	IntentID  string
	ReaderID  string
	Tendered  *decimal.Decimal
	Change    *decimal.Decimal
}

// Input is everything Finalize snapshots into an order.
type Input struct {
	RegisterID   string
	StaffID      uuid.UUID
	StaffRole    enums.StaffRole
	Cashier      string
	Currency     string
	Lines        []cart.Line
	Figures      pricing.Figures
	Discount     *discounts.Applied
	Payment      Payment
	ReceiptEmail string
}
