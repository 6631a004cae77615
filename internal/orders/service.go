package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/internal/receipts"
	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/internal/sku"
	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
	"github.com/angelmondragon/maison-pos/pkg/outbox/payloads"
)

const (
	// orderNumberKey is the counter row that numbers orders.
	orderNumberKey   = "order_number"
	idempotencyIndex = "orders_idempotency_key_key"
	defaultGuardTTL  = 24 * time.Hour
)

// Service records settled checkouts.
type Service interface {
	Finalize(ctx context.Context, input Input) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ServiceParams bundles the dependencies of the order finalizer. Guard, Usage,
// Profile, Metrics and Logger are optional.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Inventory InventoryDecrementer
	Usage     UsageRecorder
	Guard     FinalizeGuard
	GuardTTL  time.Duration
	Profile   profileReader
	Metrics   *metrics.RegisterMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryDecrementer
	usage     UsageRecorder
	guard     FinalizeGuard
	guardTTL  time.Duration
	profile   profileReader
	metrics   *metrics.RegisterMetrics
	logg      *logger.Logger
}

// NewService builds the order finalizer.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory decrementer required")
	}
	ttl := params.GuardTTL
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		inventory: params.Inventory,
		usage:     params.Usage,
		guard:     params.Guard,
		guardTTL:  ttl,
		profile:   params.Profile,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Finalize persists a settled attempt exactly once. The payment attempt id is
// the idempotency key: a repeated call returns the order already recorded.
// Once money has moved, a failure to persist is reported as
// RECONCILIATION_REQUIRED and never rolls the payment back.
func (s *service) Finalize(ctx context.Context, input Input) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	key := input.Payment.AttemptID.String()
	if s.logg != nil {
		ctx = s.logg.WithAttemptID(s.logg.WithRegisterID(ctx, input.RegisterID), key)
	}

	if existing, err := s.existing(ctx, key); err != nil || existing != nil {
		return existing, err
	}
	if !s.acquireGuard(ctx, key) {
		existing, err := s.existing(ctx, key)
		if err != nil || existing != nil {
			return existing, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order finalization already in progress").
			WithDetails(map[string]any{"payment_attempt_id": key})
	}

	order, err := buildOrder(input)
	if err != nil {
		s.releaseGuard(ctx, key)
		return nil, err
	}
	profile := s.storeProfile(ctx)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := sku.NewGormSequence(tx).Next(ctx, orderNumberKey)
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		order.OrderNumber = number

		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		for _, item := range order.LineItems {
			if err := s.inventory.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
		}
		return s.emitEvents(ctx, tx, order, input, profile)
	})
	if err != nil {
		if isDuplicateKey(err) {
			if existing, findErr := s.existing(ctx, key); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		s.releaseGuard(ctx, key)
		s.metrics.IncReconciliation(string(input.Payment.Method))
		if s.logg != nil {
			s.logg.Error(ctx, "settled payment could not be recorded", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "payment settled but the order could not be recorded").
			WithDetails(reconciliationDetails(input))
	}

	s.metrics.IncOrderFinalized(string(input.Payment.Method))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"total":        order.Total.StringFixed(2),
		}), "order finalized")
	}

	if input.Discount != nil && s.usage != nil {
		if err := s.usage.IncrementUsage(ctx, input.Discount.Code, order.ID); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "discount_code", input.Discount.Code), "failed to record discount usage", err)
		}
	}
	return order, nil
}

func (s *service) existing(ctx context.Context, key string) (*models.Order, error) {
	order, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by payment attempt")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID.String()), "payment attempt already finalized")
	}
	return order, nil
}

// acquireGuard reports false only when another caller holds the guard. A Redis
// outage falls through to the unique idempotency key.
func (s *service) acquireGuard(ctx context.Context, key string) bool {
	if s.guard == nil {
		return true
	}
	ok, err := s.guard.SetNX(ctx, s.guard.FinalizeGuardKey(key), "1", s.guardTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "finalize guard unavailable")
		}
		return true
	}
	return ok
}

func (s *service) releaseGuard(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Del(ctx, s.guard.FinalizeGuardKey(key)); err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to release finalize guard", err)
	}
}

func (s *service) storeProfile(ctx context.Context) settings.StoreProfile {
	if s.profile == nil {
		return settings.StoreProfile{}
	}
	profile, err := s.profile.ReadStoreProfile(ctx)
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "store profile unavailable for receipt")
	}
	return profile
}

func (s *service) emitEvents(ctx context.Context, tx *gorm.DB, order *models.Order, input Input, profile settings.StoreProfile) error {
	actor := &outbox.ActorRef{StaffID: input.StaffID, RegisterID: input.RegisterID, Role: string(input.StaffRole)}
	itemCount := 0
	for _, item := range order.LineItems {
		itemCount += item.Quantity
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			RegisterID:    order.RegisterID,
			StaffID:       order.StaffID,
			PaymentMethod: order.PaymentMethod,
			Total:         order.Total.StringFixed(2),
			Currency:      order.Currency,
			DiscountCode:  order.DiscountCode,
			ItemCount:     itemCount,
			CreatedAt:     order.CreatedAt,
		},
	}); err != nil {
		return fmt.Errorf("emit order_created: %w", err)
	}

	if order.ReceiptEmail == nil {
		return nil
	}
	receipt, err := receipts.FromOrder(order, profile, input.Cashier)
	if err != nil {
		return fmt.Errorf("build receipt: %w", err)
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReceiptRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.ReceiptRequestedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Email:       *order.ReceiptEmail,
			Body:        receipt.Render(),
		},
	}); err != nil {
		return fmt.Errorf("emit receipt_requested: %w", err)
	}
	return nil
}

func buildOrder(input Input) (*models.Order, error) {
	components, err := json.Marshal(input.Figures.Components)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tax components")
	}
	order := &models.Order{
		ID:               uuid.New(),
		IdempotencyKey:   input.Payment.AttemptID.String(),
		RegisterID:       input.RegisterID,
		StaffID:          input.StaffID,
		Status:           enums.OrderStatusCompleted,
		Currency:         input.Currency,
		Subtotal:         input.Figures.Subtotal,
		DiscountAmount:   input.Figures.Discount,
		TaxableAmount:    input.Figures.Taxable,
		Tax:              input.Figures.Tax,
		TaxComponents:    components,
		Total:            input.Figures.Total,
		PaymentMethod:    input.Payment.Method,
		PaymentAttemptID: input.Payment.AttemptID,
		CreatedAt:        time.Now().UTC(),
	}
	if input.Discount != nil {
		code := input.Discount.Code
		kind := input.Discount.Type
		order.DiscountCode = &code
		order.DiscountType = &kind
		order.DiscountValue = decimal.NewNullDecimal(input.Discount.Value)
	}
	if input.Payment.Tendered != nil {
		order.AmountTendered = decimal.NewNullDecimal(*input.Payment.Tendered)
	}
	if input.Payment.Change != nil {
		order.ChangeDue = decimal.NewNullDecimal(*input.Payment.Change)
	}
	if v := strings.TrimSpace(input.Payment.IntentID); v != "" {
		order.PaymentIntentID = &v
	}
	if v := strings.TrimSpace(input.Payment.ReaderID); v != "" {
		order.ReaderID = &v
	}
	if v := strings.TrimSpace(input.ReceiptEmail); v != "" {
		order.ReceiptEmail = &v
	}
	for i, line := range input.Lines {
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  line.ProductID,
			SKU:        line.SKU,
			Name:       line.Name,
			VariantKey: line.VariantKey,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			LineTotal:  line.Total().Round(2),
			Position:   i,
		})
	}
	return order, nil
}

func validateInput(input Input) error {
	switch {
	case input.Payment.AttemptID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "payment attempt id is required")
	case !input.Payment.Method.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	case strings.TrimSpace(input.RegisterID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "register id is required")
	case input.StaffID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "staff id is required")
	case len(input.Lines) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	return nil
}

func reconciliationDetails(input Input) map[string]any {
	details := map[string]any{
		"payment_attempt_id": input.Payment.AttemptID.String(),
		"payment_method":     input.Payment.Method,
		"total":              input.Figures.Total.StringFixed(2),
		"register_id":        input.RegisterID,
	}
	if input.Payment.IntentID != "" {
		details["payment_intent_id"] = input.Payment.IntentID
	}
	return details
}

func isDuplicateKey(err error) bool {
	return db.IsUniqueViolation(err, idempotencyIndex) || db.IsUniqueViolation(err, "orders.idempotency_key")
}
