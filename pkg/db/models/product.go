package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is a time-boxed percentage markdown shared by several products.
type Sale struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	PercentOff decimal.Decimal `gorm:"column:percent_off;type:numeric(5,2);not null"`
	StartsAt   *time.Time      `gorm:"column:starts_at"`
	EndsAt     *time.Time      `gorm:"column:ends_at"`
	IsActive   bool            `gorm:"column:is_active;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// ActiveAt reports whether the sale applies at the given instant.
func (s *Sale) ActiveAt(at time.Time) bool {
	if s == nil || !s.IsActive {
		return false
	}
	if s.StartsAt != nil && at.Before(*s.StartsAt) {
		return false
	}
	if s.EndsAt != nil && !at.Before(*s.EndsAt) {
		return false
	}
	return true
}

// Product is a sellable variant: one size/color/material combination with its own SKU and stock.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU           string              `gorm:"column:sku;not null;uniqueIndex:products_sku_key"`
	Name          string              `gorm:"column:name;not null;index"`
	CategoryID    uuid.UUID           `gorm:"column:category_id;type:uuid;not null;index"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPrice decimal.NullDecimal `gorm:"column:discount_price;type:numeric(12,2)"`
	SaleID        *uuid.UUID          `gorm:"column:sale_id;type:uuid"`
	Sale          *Sale               `gorm:"foreignKey:SaleID"`
	Stock         int                 `gorm:"column:stock;not null;default:0"`
	Size          *string             `gorm:"column:size"`
	Color         *string             `gorm:"column:color"`
	Material      *string             `gorm:"column:material"`
	IsActive      bool                `gorm:"column:is_active;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
