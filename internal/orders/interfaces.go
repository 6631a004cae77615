package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
)

// Repository defines persistence operations for register orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryDecrementer removes sold units inside the order transaction.
type InventoryDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// UsageRecorder counts a discount redemption once the order is durable.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, code string, orderID uuid.UUID) error
}

// FinalizeGuard is the Redis SETNX guard keyed by payment attempt.
type FinalizeGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	FinalizeGuardKey(attemptID string) string
}

type profileReader interface {
	ReadStoreProfile(ctx context.Context) (settings.StoreProfile, error)
}
