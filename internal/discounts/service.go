package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Applied is an accepted discount with its amount against the validated subtotal.
type Applied struct {
	DiscountID uuid.UUID
	Code       string
	Type       enums.DiscountType
	Value      decimal.Decimal
	Amount     decimal.Decimal
}

// Service validates codes at the register and counts their use once per order.
type Service interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (Applied, error)
	IncrementUsage(ctx context.Context, code string, orderID uuid.UUID) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the discount service.
func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg, now: time.Now}, nil
}

// NormalizeCode trims and upper-cases a code as typed by the operator.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate reads the code fresh and checks it against the subtotal.
func (s *service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (Applied, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Applied{}, rejection(ReasonUnknown, normalized, nil)
	}

	discount, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Applied{}, rejection(ReasonUnknown, normalized, nil)
		}
		return Applied{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
	}

	if reason, extra := check(discount, subtotal, s.now()); reason != "" {
		return Applied{}, rejection(reason, normalized, extra)
	}

	return Applied{
		DiscountID: discount.ID,
		Code:       discount.Code,
		Type:       discount.Type,
		Value:      discount.Value,
		Amount:     Amount(discount.Type, discount.Value, subtotal),
	}, nil
}

func check(d *models.Discount, subtotal decimal.Decimal, now time.Time) (Reason, map[string]any) {
	if !d.IsActive || !d.Type.IsValid() {
		return ReasonInactive, nil
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return ReasonExpired, map[string]any{"expired_at": d.ExpiresAt.UTC()}
	}
	if d.MaxUses != nil && d.UsageCount >= *d.MaxUses {
		return ReasonExhausted, nil
	}
	if d.MinimumSpend.Valid && subtotal.LessThan(d.MinimumSpend.Decimal) {
		return ReasonBelowMinimum, map[string]any{"minimum_spend": d.MinimumSpend.Decimal.StringFixed(2)}
	}
	return "", nil
}

// Amount computes the discount at full precision, never exceeding subtotal.
func Amount(kind enums.DiscountType, value, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 || value.Sign() <= 0 {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch kind {
	case enums.DiscountTypePercentage:
		amount = value.Div(hundred).Mul(subtotal)
	case enums.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// IncrementUsage counts one use for the order. Repeated calls for the same order
// leave usage_count unchanged.
func (s *service) IncrementUsage(ctx context.Context, code string, orderID uuid.UUID) error {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	counted := false
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		discount, err := repo.FindByCode(ctx, normalized)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
			}
			return err
		}
		inserted, err := repo.InsertRedemption(ctx, &models.DiscountRedemption{
			DiscountID: discount.ID,
			Code:       discount.Code,
			OrderID:    orderID,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		counted = true
		return repo.IncrementUsage(ctx, discount.ID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment discount usage")
	}

	if s.logg != nil && !counted {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"code":     normalized,
			"order_id": orderID.String(),
		}), "discount usage already counted for order")
	}
	return nil
}
