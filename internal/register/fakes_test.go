package register

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/orders"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/internal/session"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

type fakeProducts struct {
	bySKU map[string]models.Product
}

func (f fakeProducts) ReadProduct(_ context.Context, ref catalog.ProductRef) (*models.Product, error) {
	for _, p := range f.bySKU {
		if (ref.ID != nil && *ref.ID == p.ID) || (ref.SKU != "" && ref.SKU == p.SKU) {
			out := p
			return &out, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type fakeDiscounts struct {
	codes map[string]models.Discount
}

func (f fakeDiscounts) Validate(_ context.Context, code string, subtotal decimal.Decimal) (discounts.Applied, error) {
	d, ok := f.codes[discounts.NormalizeCode(code)]
	switch {
	case !ok:
		return discounts.Applied{}, rejected(discounts.ReasonUnknown, code)
	case !d.IsActive:
		return discounts.Applied{}, rejected(discounts.ReasonInactive, code)
	case d.MinimumSpend.Valid && subtotal.LessThan(d.MinimumSpend.Decimal):
		return discounts.Applied{}, rejected(discounts.ReasonBelowMinimum, code)
	}
	return discounts.Applied{
		DiscountID: d.ID,
		Code:       d.Code,
		Type:       d.Type,
		Value:      d.Value,
		Amount:     discounts.Amount(d.Type, d.Value, subtotal),
	}, nil
}

func rejected(reason discounts.Reason, code string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "discount code is not valid").
		WithDetails(map[string]any{"reason": reason, "code": code})
}

type flatPlan struct{ rate decimal.Decimal }

func (p flatPlan) RegisterPlan(context.Context) (pricing.TaxPlan, error) {
	return pricing.Flat(p.rate), nil
}

type fakeFinalizer struct {
	mu     sync.Mutex
	inputs []orders.Input
	errs   []error
}

func (f *fakeFinalizer) failNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeFinalizer) Finalize(_ context.Context, input orders.Input) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      int64(len(f.inputs)),
		Total:            input.Figures.Total,
		PaymentMethod:    input.Payment.Method,
		PaymentAttemptID: input.Payment.AttemptID,
	}, nil
}

func (f *fakeFinalizer) last() orders.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

type member struct {
	pin  string
	name string
	role enums.StaffRole
}

type fakeStaff struct {
	members map[uuid.UUID]member
}

func (f fakeStaff) VerifyCredential(_ context.Context, id uuid.UUID, pin string) (*models.Staff, error) {
	m, ok := f.members[id]
	if !ok || m.pin != pin {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &models.Staff{ID: id, DisplayName: m.name, Role: m.role, IsActive: true}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(time.Duration) session.Ticker { return idleTicker{} }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

// heldGateway parks ProcessPayment until released so tests can act while
// funds are held.
type heldGateway struct {
	*payments.SimulatedGateway
	release chan struct{}
}

func (g *heldGateway) ProcessPayment(ctx context.Context, intent payments.Intent) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.SimulatedGateway.ProcessPayment(ctx, intent)
}
