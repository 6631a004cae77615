package register

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/orders"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/session"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// ApplyDiscount validates a code against the current subtotal and applies it,
// replacing any previous discount.
func (r *Register) ApplyDiscount(ctx context.Context, code string) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	if r.ledger.IsEmpty() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	applied, err := r.discounts.Validate(ctx, code, r.ledger.Subtotal())
	if err != nil {
		return View{}, err
	}
	r.discount = &applied
	r.dropped = nil
	return r.viewLocked(ctx)
}

// RemoveDiscount drops the applied discount.
func (r *Register) RemoveDiscount(ctx context.Context) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	r.discount = nil
	r.dropped = nil
	return r.viewLocked(ctx)
}

// StartPayment freezes the cart figures and opens a payment attempt for the
// chosen method.
func (r *Register) StartPayment(ctx context.Context, method enums.PaymentMethod) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	if r.ledger.IsEmpty() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	// The code may have expired or run out of uses since it was applied.
	if r.discount != nil {
		code := r.discount.Code
		if err := r.revalidateDiscountLocked(ctx); err != nil {
			return View{}, err
		}
		if r.dropped != nil {
			return View{}, pkgerrors.New(pkgerrors.CodeValidation, "applied discount is no longer valid; review the new total").
				WithDetails(map[string]any{
					"code":   code,
					"reason": r.dropped.Reason,
				})
		}
	}
	figures, err := r.figuresLocked(ctx)
	if err != nil {
		return View{}, err
	}
	if method == enums.PaymentMethodCard && !figures.Total.IsPositive() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "card payments need a positive total")
	}
	if _, err := r.payments.Begin(ctx, figures.Total); err != nil {
		return View{}, err
	}
	if _, err := r.payments.SelectMethod(ctx, method); err != nil {
		_, _ = r.payments.Cancel(ctx)
		return View{}, err
	}
	r.quote = &figures
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"payment_method": method,
			"total":          figures.Total.StringFixed(2),
		}), "payment started")
	}
	return r.viewLocked(ctx)
}

// TenderCash settles a cash attempt. A short amount is rejected and the
// attempt stays open for another tender.
func (r *Register) TenderCash(ctx context.Context, amount decimal.Decimal) (View, error) {
	return r.paymentStep(ctx, func(ctx context.Context) error {
		_, err := r.payments.Tender(ctx, amount)
		return err
	})
}

// DiscoverReaders lists card readers for the open card attempt.
func (r *Register) DiscoverReaders(ctx context.Context) (View, error) {
	return r.paymentStep(ctx, func(ctx context.Context) error {
		_, err := r.payments.Discover(ctx)
		return err
	})
}

// ConnectReader pairs the attempt with a discovered reader.
func (r *Register) ConnectReader(ctx context.Context, readerID string) (View, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "reader_id is required")
	}
	return r.paymentStep(ctx, func(ctx context.Context) error {
		_, err := r.payments.Connect(ctx, readerID)
		return err
	})
}

// CancelCollection stops waiting for a card. It can run while Charge blocks.
func (r *Register) CancelCollection(ctx context.Context) (View, error) {
	return r.paymentStep(ctx, func(ctx context.Context) error {
		_, err := r.payments.CancelCollection(ctx)
		return err
	})
}

// RestartCard sends a failed card attempt back to reader discovery.
func (r *Register) RestartCard(ctx context.Context) (View, error) {
	return r.paymentStep(ctx, func(ctx context.Context) error {
		_, err := r.payments.Restart(ctx)
		return err
	})
}

// CancelPayment abandons the open attempt and unlocks the cart.
func (r *Register) CancelPayment(ctx context.Context) (View, error) {
	return r.paymentStep(ctx, func(ctx context.Context) error {
		if _, err := r.payments.Cancel(ctx); err != nil {
			return err
		}
		r.quote = nil
		return nil
	})
}

func (r *Register) paymentStep(ctx context.Context, step func(ctx context.Context) error) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alert != nil {
		return View{}, reconciliationPending(r.alert)
	}
	if err := step(ctx); err != nil {
		return View{}, err
	}
	return r.viewLocked(ctx)
}

// Charge runs the card flow on the connected reader. The register mutex is not
// held while the gateway works.
func (r *Register) Charge(ctx context.Context) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	if r.alert != nil {
		alert := r.alert
		r.mu.Unlock()
		return View{}, reconciliationPending(alert)
	}
	r.mu.Unlock()

	_, chargeErr := r.payments.Charge(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	view, err := r.viewLocked(ctx)
	if chargeErr != nil {
		return view, chargeErr
	}
	return view, err
}

// Finalize records the settled attempt as an order and resets the checkout.
// When the order cannot be stored the register raises a reconciliation alert
// and keeps the settled attempt so Finalize can be retried.
func (r *Register) Finalize(ctx context.Context, receiptEmail string) (*models.Order, error) {
	if err := r.activity(ctx); err != nil {
		return nil, err
	}
	ctx = r.ctx(ctx)
	operator, ok := r.guard.Current()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.payments.Snapshot()
	if snap.State != enums.PaymentStateSettled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not settled").
			WithDetails(map[string]any{"payment_state": snap.State})
	}
	figures, err := r.figuresLocked(ctx)
	if err != nil {
		return nil, err
	}

	input := orders.Input{
		RegisterID:   r.id,
		StaffID:      operator.StaffID,
		StaffRole:    operator.Role,
		Cashier:      operator.DisplayName,
		Currency:     r.currency,
		Lines:        r.ledger.Lines(),
		Figures:      figures,
		Discount:     r.discount,
		Payment:      paymentFromSnapshot(snap),
		ReceiptEmail: receiptEmail,
	}
	order, err := r.orders.Finalize(ctx, input)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeReconciliation) {
			r.raiseAlertLocked(ctx, snap, err)
		}
		return nil, err
	}

	r.resetCheckoutLocked()
	r.payments.Reset()
	r.alert = nil
	return order, nil
}

// AcknowledgeReconciliation clears the alert once a manager has reconciled the
// payment by hand. The settled attempt and its cart are discarded.
func (r *Register) AcknowledgeReconciliation(ctx context.Context) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	operator, ok := r.guard.Current()
	if !ok {
		return View{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if operator.Role != enums.StaffRoleManager {
		return View{}, pkgerrors.New(pkgerrors.CodeForbidden, "a manager must acknowledge reconciliation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alert == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeStateConflict, "no reconciliation alert is open")
	}
	alert := *r.alert
	r.alert = nil
	r.resetCheckoutLocked()
	r.payments.Reset()
	if r.logg != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"payment_attempt_id": alert.PaymentAttemptID.String(),
			"payment_intent_id":  alert.PaymentIntentID,
			"total":              alert.Total.StringFixed(2),
			"acknowledged_by":    operator.StaffID.String(),
		}), "reconciliation alert acknowledged")
	}
	return r.viewLocked(ctx)
}

// Session returns the guard status for the register.
func (r *Register) Session() session.Status {
	return r.guard.Status()
}

func (r *Register) raiseAlertLocked(ctx context.Context, snap payments.Snapshot, cause error) {
	r.alert = &Alert{
		PaymentAttemptID: snap.AttemptID,
		PaymentIntentID:  snap.IntentID,
		Method:           snap.Method,
		Total:            snap.Total,
		Message:          cause.Error(),
		RaisedAt:         r.now().UTC(),
	}
	if r.logg != nil {
		r.logg.Error(r.logg.WithField(ctx, "payment_attempt_id", snap.AttemptID.String()), "reconciliation alert raised", cause)
	}
}

func paymentFromSnapshot(snap payments.Snapshot) orders.Payment {
	return orders.Payment{
		AttemptID: snap.AttemptID,
		Method:    snap.Method,
		IntentID:  snap.IntentID,
		ReaderID:  snap.ReaderID,
		Tendered:  snap.Tendered,
		Change:    snap.Change,
	}
}
