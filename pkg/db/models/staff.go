package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// Staff is a register operator. PinHash holds an argon2id encoded credential.
type Staff struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DisplayName string          `gorm:"column:display_name;not null"`
	Role        enums.StaffRole `gorm:"column:role;type:text;not null;default:'cashier'"`
	PinHash     string          `gorm:"column:pin_hash;not null"`
	IsActive    bool            `gorm:"column:is_active;not null"`
	LastLoginAt *time.Time      `gorm:"column:last_login_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
