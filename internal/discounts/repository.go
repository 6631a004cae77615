package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

// Repository persists discount codes and their per-order redemptions.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByCode reads a discount fresh from storage.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&discount).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

// Create inserts a discount row.
func (r *Repository) Create(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if err := r.db.WithContext(ctx).Create(discount).Error; err != nil {
		return nil, err
	}
	return discount, nil
}

// InsertRedemption records the use of a discount by an order. It reports false
// when the order already has a redemption row.
func (r *Repository) InsertRedemption(ctx context.Context, redemption *models.DiscountRedemption) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(redemption)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementUsage bumps usage_count in a single statement.
func (r *Repository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
}

// CountRedemptions returns how many orders redeemed the discount.
func (r *Repository) CountRedemptions(ctx context.Context, discountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRedemption{}).
		Where("discount_id = ?", discountID).
		Count(&count).Error
	return count, err
}
