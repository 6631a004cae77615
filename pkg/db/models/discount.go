package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// Discount is a promotional code redeemable at the register.
type Discount struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code         string              `gorm:"column:code;not null;uniqueIndex:discounts_code_key"`
	Type         enums.DiscountType  `gorm:"column:type;type:text;not null"`
	Value        decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	UsageCount   int                 `gorm:"column:usage_count;not null;default:0"`
	MaxUses      *int                `gorm:"column:max_uses"`
	ExpiresAt    *time.Time          `gorm:"column:expires_at"`
	MinimumSpend decimal.NullDecimal `gorm:"column:minimum_spend;type:numeric(12,2)"`
	IsActive     bool                `gorm:"column:is_active;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountRedemption records one counted use per order so usage increments stay idempotent.
type DiscountRedemption struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DiscountID uuid.UUID `gorm:"column:discount_id;type:uuid;not null;index"`
	Code       string    `gorm:"column:code;not null"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:discount_redemptions_order_id_key"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
