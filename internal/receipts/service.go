package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type staffReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Staff, error)
}

type profileReader interface {
	ReadStoreProfile(ctx context.Context) (settings.StoreProfile, error)
}

// Service reprints receipts for persisted orders.
type Service interface {
	Render(ctx context.Context, orderID uuid.UUID) (string, error)
}

type service struct {
	orders  orderReader
	staff   staffReader
	profile profileReader
}

// NewService wires the stores the receipt is assembled from.
func NewService(orders orderReader, staff staffReader, profile profileReader) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if staff == nil {
		return nil, fmt.Errorf("staff reader required")
	}
	if profile == nil {
		return nil, fmt.Errorf("store profile reader required")
	}
	return &service{orders: orders, staff: staff, profile: profile}, nil
}

func (s *service) Render(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	profile, err := s.profile.ReadStoreProfile(ctx)
	if err != nil {
		return "", err
	}
	cashier := ""
	if member, err := s.staff.FindByID(ctx, order.StaffID); err == nil {
		cashier = member.DisplayName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cashier")
	}
	receipt, err := FromOrder(order, profile, cashier)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build receipt")
	}
	return receipt.Render(), nil
}
