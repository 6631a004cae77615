package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

// Repository persists categories and product variants.
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

// FindCategory loads a category with its parent so the SKU prefix can be built.
func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).
		Preload("Parent").
		Where("id = ?", id).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a category row. Codes are stored upper case.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	category.Code = strings.ToUpper(strings.TrimSpace(category.Code))
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// FindProductByID loads a variant with its sale.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Sale").
		Where("id = ?", id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductBySKU loads a variant by its scanned SKU.
func (r *Repository) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Sale").
		Where("sku = ?", strings.TrimSpace(sku)).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListVariantsByName returns the active size/color variants sharing a product name.
func (r *Repository) ListVariantsByName(ctx context.Context, name string, categoryID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Sale").
		Where("name = ? AND category_id = ? AND is_active = ?", strings.TrimSpace(name), categoryID, true).
		Order("size ASC").
		Order("color ASC").
		Order("sku ASC").
		Find(&rows).Error
	return rows, err
}

// CreateProduct inserts a product variant.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// WriteStock overwrites the stock figure of a variant.
func (r *Repository) WriteStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		stock = 0
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", stock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementStock subtracts a sold quantity in one statement, clamping at zero.
// Concurrent registers may oversell the last unit; the sale is never blocked.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE products SET stock = CASE WHEN stock >= ? THEN stock - ? ELSE 0 END, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		qty, qty, id,
	).Error
}

// Decrement removes sold units within the caller's order transaction.
func (r *Repository) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return r.WithTx(tx).DecrementStock(ctx, productID, qty)
}
