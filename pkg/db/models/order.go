package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// Order is the immutable snapshot written once per settled register checkout.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      int64               `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	IdempotencyKey   string              `gorm:"column:idempotency_key;not null;uniqueIndex:orders_idempotency_key_key"`
	RegisterID       string              `gorm:"column:register_id;not null;index"`
	StaffID          uuid.UUID           `gorm:"column:staff_id;type:uuid;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'completed'"`
	Currency         string              `gorm:"column:currency;not null"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountCode     *string             `gorm:"column:discount_code"`
	DiscountType     *enums.DiscountType `gorm:"column:discount_type;type:text"`
	DiscountValue    decimal.NullDecimal `gorm:"column:discount_value;type:numeric(12,2)"`
	DiscountAmount   decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TaxableAmount    decimal.Decimal     `gorm:"column:taxable_amount;type:numeric(12,2);not null"`
	Tax              decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	TaxComponents    json.RawMessage     `gorm:"column:tax_components;type:jsonb;not null"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	AmountTendered   decimal.NullDecimal `gorm:"column:amount_tendered;type:numeric(12,2)"`
	ChangeDue        decimal.NullDecimal `gorm:"column:change_due;type:numeric(12,2)"`
	PaymentAttemptID uuid.UUID           `gorm:"column:payment_attempt_id;type:uuid;not null"`
	PaymentIntentID  *string             `gorm:"column:payment_intent_id"`
	ReaderID         *string             `gorm:"column:reader_id"`
	ReceiptEmail     *string             `gorm:"column:receipt_email"`
	LineItems        []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// OrderLineItem captures the priced snapshot of one cart line.
type OrderLineItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SKU        string          `gorm:"column:sku;not null"`
	Name       string          `gorm:"column:name;not null"`
	VariantKey string          `gorm:"column:variant_key;not null;default:''"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	LineTotal  decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position   int             `gorm:"column:position;not null;default:0"`
}
