// Package register composes the cart, pricing, payment and session pieces of
// one physical register behind the operations the HTTP layer exposes.
//
// Every operation runs under the register mutex except Charge, which must
// leave it free so the card collection can be cancelled and so a deferred idle
// logout can reach the logout hook.
package register

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/orders"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/internal/session"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

// ProductReader is the Product Store read used when scanning.
type ProductReader interface {
	ReadProduct(ctx context.Context, ref catalog.ProductRef) (*models.Product, error)
}

// DiscountValidator validates a typed promotional code against a subtotal.
type DiscountValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (discounts.Applied, error)
}

// PlanReader supplies the register tax configuration.
type PlanReader interface {
	RegisterPlan(ctx context.Context) (pricing.TaxPlan, error)
}

// Finalizer records a settled checkout.
type Finalizer interface {
	Finalize(ctx context.Context, input orders.Input) (*models.Order, error)
}

// Alert blocks the register after money moved but the order could not be recorded.
type Alert struct {
	PaymentAttemptID uuid.UUID
	PaymentIntentID  string
	Method           enums.PaymentMethod
	Total            decimal.Decimal
	Message          string
	RaisedAt         time.Time
}

// View is the read model returned by every cart and checkout operation.
type View struct {
	RegisterID      string
	Lines           []cart.Line
	ItemCount       int
	Discount        *discounts.Applied
	DiscountDropped *DiscountRejection
	Figures         pricing.Figures
	Currency        string
	Payment         payments.Snapshot
	Alert           *Alert
}

// DiscountRejection is reported when a cart edit made the applied code
// invalid and it was removed.
type DiscountRejection struct {
	Code    string
	Reason  discounts.Reason
	Message string
}

// Options configures a Register.
type Options struct {
	ID              string
	Currency        string
	ClearCartOnIdle bool
}

// Deps bundles the collaborators of a Register.
type Deps struct {
	Products     ProductReader
	Discounts    DiscountValidator
	Plans        PlanReader
	Orders       Finalizer
	Orchestrator *payments.Orchestrator
	Guard        *session.Guard
	Now          func() time.Time
	Logger       *logger.Logger
}

// Register is the checkout of one physical till.
type Register struct {
	id              string
	currency        string
	clearCartOnIdle bool

	products  ProductReader
	discounts DiscountValidator
	plans     PlanReader
	orders    Finalizer
	payments  *payments.Orchestrator
	guard     *session.Guard
	now       func() time.Time
	logg      *logger.Logger

	mu       sync.Mutex
	ledger   *cart.Ledger
	discount *discounts.Applied
	dropped  *DiscountRejection
	quote    *pricing.Figures
	alert    *Alert
}

// New wires a register and installs it as the guard's logout hook and the
// orchestrator's payment hold.
func New(opts Options, deps Deps) (*Register, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, fmt.Errorf("register id required")
	}
	switch {
	case deps.Products == nil:
		return nil, fmt.Errorf("product reader required")
	case deps.Discounts == nil:
		return nil, fmt.Errorf("discount validator required")
	case deps.Plans == nil:
		return nil, fmt.Errorf("plan reader required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("order finalizer required")
	case deps.Orchestrator == nil:
		return nil, fmt.Errorf("payment orchestrator required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("session guard required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = "CAD"
	}
	r := &Register{
		id:              opts.ID,
		currency:        currency,
		clearCartOnIdle: opts.ClearCartOnIdle,
		products:        deps.Products,
		discounts:       deps.Discounts,
		plans:           deps.Plans,
		orders:          deps.Orders,
		payments:        deps.Orchestrator,
		guard:           deps.Guard,
		now:             now,
		logg:            deps.Logger,
		ledger:          cart.New(),
	}
	deps.Guard.SetPaymentHold(deps.Orchestrator)
	deps.Guard.SetLogoutHook(r.onLogout)
	deps.Orchestrator.Observe(deps.Guard)
	return r, nil
}

// ID returns the register identifier.
func (r *Register) ID() string { return r.id }

// Guard exposes the session guard for login and token checks.
func (r *Register) Guard() *session.Guard { return r.guard }

func (r *Register) ctx(ctx context.Context) context.Context {
	if r.logg == nil {
		return ctx
	}
	ctx = r.logg.WithRegisterID(ctx, r.id)
	if s, ok := r.guard.Current(); ok {
		ctx = r.logg.WithStaffID(ctx, s.StaffID.String())
	}
	return ctx
}

// activity records operator input. It must run before r.mu is taken: an
// expired session ends inside Touch and the logout hook locks the register.
func (r *Register) activity(ctx context.Context) error {
	return r.guard.Touch(ctx)
}

// View returns the current checkout without recording activity.
func (r *Register) View(ctx context.Context) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(ctx)
}

func (r *Register) viewLocked(ctx context.Context) (View, error) {
	figures, err := r.figuresLocked(ctx)
	if err != nil {
		return View{}, err
	}
	view := View{
		RegisterID: r.id,
		Lines:      r.ledger.Lines(),
		ItemCount:  r.ledger.ItemCount(),
		Figures:    figures,
		Currency:   r.currency,
		Payment:    r.payments.Snapshot(),
	}
	if r.discount != nil {
		d := *r.discount
		view.Discount = &d
	}
	if r.dropped != nil {
		d := *r.dropped
		view.DiscountDropped = &d
	}
	if r.alert != nil {
		a := *r.alert
		view.Alert = &a
	}
	return view, nil
}

// figuresLocked prices the cart. While a payment is open the figures frozen
// at StartPayment are returned so the charged total cannot drift.
func (r *Register) figuresLocked(ctx context.Context) (pricing.Figures, error) {
	if r.quote != nil {
		return *r.quote, nil
	}
	plan, err := r.plans.RegisterPlan(ctx)
	if err != nil {
		return pricing.Figures{}, err
	}
	discount := decimal.Zero
	if r.discount != nil {
		discount = r.discount.Amount
	}
	return pricing.Compute(r.ledger.Subtotal(), discount, plan).Rounded(), nil
}

// requireEditableLocked refuses cart and discount edits once a payment is open
// or while a reconciliation alert is unacknowledged.
func (r *Register) requireEditableLocked() error {
	if r.alert != nil {
		return reconciliationPending(r.alert)
	}
	if state := r.payments.State(); state != enums.PaymentStateIdle {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked while a payment is open").
			WithDetails(map[string]any{"payment_state": state})
	}
	return nil
}

// revalidateDiscountLocked runs the applied code through the evaluator again
// against the current subtotal. A code that no longer qualifies is dropped and
// reported on the view; a store failure leaves it in place and is returned.
func (r *Register) revalidateDiscountLocked(ctx context.Context) error {
	r.dropped = nil
	if r.discount == nil {
		return nil
	}
	if r.ledger.IsEmpty() {
		r.discount = nil
		return nil
	}
	code := r.discount.Code
	applied, err := r.discounts.Validate(ctx, code, r.ledger.Subtotal())
	if err == nil {
		r.discount = &applied
		return nil
	}
	reason, ok := discounts.RejectionReason(err)
	if !ok {
		return err
	}
	r.discount = nil
	r.dropped = &DiscountRejection{Code: code, Reason: reason}
	if typed := pkgerrors.As(err); typed != nil {
		r.dropped.Message = typed.Message()
	}
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"discount_code": code,
			"reason":        reason,
		}), "discount dropped after cart edit")
	}
	return nil
}

func (r *Register) resetCheckoutLocked() {
	r.ledger.Clear()
	r.discount = nil
	r.dropped = nil
	r.quote = nil
}

// onLogout runs after a session ends. An idle logout abandons any open
// attempt that holds no funds so the next operator starts from a clean
// checkout; the cart itself is only cleared when configured.
func (r *Register) onLogout(ctx context.Context, ended session.Session, reason session.Reason) {
	if reason != session.ReasonIdle {
		return
	}
	if r.logg != nil {
		ctx = r.logg.WithStaffID(r.ctx(ctx), ended.StaffID.String())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alert != nil {
		return
	}
	switch state := r.payments.State(); {
	case state == enums.PaymentStateIdle:
	case state == enums.PaymentStateSettled, state.HoldsFunds():
		return
	default:
		if _, err := r.payments.Cancel(ctx); err != nil {
			if r.logg != nil {
				r.logg.Error(ctx, "cancel payment after idle logout", err)
			}
			return
		}
		r.quote = nil
		if r.logg != nil {
			r.logg.Info(r.logg.WithField(ctx, "payment_state", state), "open payment abandoned after idle logout")
		}
	}
	if !r.clearCartOnIdle {
		return
	}
	r.resetCheckoutLocked()
	if r.logg != nil {
		r.logg.Info(ctx, "cart cleared after idle logout")
	}
}

func reconciliationPending(alert *Alert) error {
	return pkgerrors.New(pkgerrors.CodeReconciliation, "register is blocked until the reconciliation alert is acknowledged").
		WithDetails(map[string]any{
			"payment_attempt_id": alert.PaymentAttemptID.String(),
			"payment_intent_id":  alert.PaymentIntentID,
			"total":              alert.Total.StringFixed(2),
		})
}
