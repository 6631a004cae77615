package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

// Repository persists register operators.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns active operators ordered for the login screen.
func (r *Repository) ListActive(ctx context.Context) ([]models.Staff, error) {
	var rows []models.Staff
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	var row models.Staff
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, row *models.Staff) (*models.Staff, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// UpdateLastLogin stamps the login time.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Staff{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// UpdatePinHash replaces the stored credential, used when hash parameters change.
func (r *Repository) UpdatePinHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.Staff{}).
		Where("id = ?", id).
		Update("pin_hash", hash).Error
}
