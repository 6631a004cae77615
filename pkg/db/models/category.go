package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products and supplies the SKU prefix codes.
type Category struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code      string     `gorm:"column:code;not null"`
	Name      string     `gorm:"column:name;not null"`
	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	Parent    *Category  `gorm:"foreignKey:ParentID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// SkuCounter is the per-prefix allocation sequence. Rows are created lazily and
// only ever incremented.
type SkuCounter struct {
	Prefix    string    `gorm:"column:prefix;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
