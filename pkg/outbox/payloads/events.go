package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// OrderCreatedEvent announces a settled register sale.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	RegisterID    string              `json:"register_id"`
	StaffID       uuid.UUID           `json:"staff_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Total         string              `json:"total"`
	Currency      string              `json:"currency"`
	DiscountCode  *string             `json:"discount_code,omitempty"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ReceiptRequestedEvent asks the mailer to send the printed receipt body to a customer.
type ReceiptRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	Email       string    `json:"email"`
	Body        string    `json:"body"`
}

// SKUFallbackIssuedEvent flags a product saved with a degraded, non-sequenced SKU.
type SKUFallbackIssuedEvent struct {
	ProductID  uuid.UUID  `json:"product_id"`
	SKU        string     `json:"sku"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Reason     string     `json:"reason"`
}
