package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
)

const (
	defaultStepTimeout    = 30 * time.Second
	defaultCollectTimeout = 2 * time.Minute
	defaultCurrency       = "CAD"
)

// Failure is the step and message of the last failed card call.
type Failure struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
}

// StateChange is delivered to observers after every transition.
type StateChange struct {
	AttemptID uuid.UUID
	From      enums.PaymentState
	To        enums.PaymentState
	Failure   *Failure
}

// Observer is notified of transitions outside the orchestrator lock.
type Observer interface {
	PaymentStateChanged(change StateChange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StateChange)

// PaymentStateChanged implements Observer.
func (f ObserverFunc) PaymentStateChanged(change StateChange) { f(change) }

// Snapshot is a read-only copy of the current attempt.
type Snapshot struct {
	AttemptID  uuid.UUID
	State      enums.PaymentState
	Method     enums.PaymentMethod
	Total      decimal.Decimal
	Currency   string
	Tendered   *decimal.Decimal
	Change     *decimal.Decimal
	Readers    []Reader
	ReaderID   string
	IntentID   string
	Authorized bool
	LastError  *Failure
}

type attempt struct {
	id         uuid.UUID
	state      enums.PaymentState
	method     enums.PaymentMethod
	total      decimal.Decimal
	currency   string
	tendered   *decimal.Decimal
	change     *decimal.Decimal
	readers    []Reader
	readerID   string
	intent     *Intent
	authorized bool
	captured   bool
	lastError  *Failure
}

// Options tunes gateway timeouts.
type Options struct {
	StepTimeout    time.Duration
	CollectTimeout time.Duration
	Currency       string
}

// Orchestrator is the payment state machine of one register checkout. Only
// one attempt exists at a time; gateway calls run without holding the lock so
// collection can be cancelled from another request.
type Orchestrator struct {
	mu        sync.Mutex
	gateway   Gateway
	metrics   *metrics.RegisterMetrics
	logg      *logger.Logger
	observers []Observer
	opts      Options

	attempt       *attempt
	charging      bool
	collectCancel context.CancelFunc
	pending       []StateChange
}

// NewOrchestrator wires a gateway to a fresh idle attempt.
func NewOrchestrator(gateway Gateway, opts Options, m *metrics.RegisterMetrics, logg *logger.Logger) (*Orchestrator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = defaultStepTimeout
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = defaultCollectTimeout
	}
	if strings.TrimSpace(opts.Currency) == "" {
		opts.Currency = defaultCurrency
	}
	o := &Orchestrator{
		gateway: gateway,
		metrics: m,
		logg:    logg,
		opts:    opts,
	}
	o.attempt = o.idleAttempt()
	return o, nil
}

// Observe registers an observer. Call before the orchestrator is shared.
func (o *Orchestrator) Observe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// unlock releases the lock and then delivers queued transitions.
func (o *Orchestrator) unlock() {
	pending := o.pending
	o.pending = nil
	observers := o.observers
	o.mu.Unlock()
	for _, change := range pending {
		for _, obs := range observers {
			obs.PaymentStateChanged(change)
		}
	}
}

func (o *Orchestrator) idleAttempt() *attempt {
	return &attempt{id: uuid.New(), state: enums.PaymentStateIdle, currency: o.opts.Currency}
}

// Snapshot returns the current attempt.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.unlock()
	return o.snapshotLocked()
}

// State returns the current state.
func (o *Orchestrator) State() enums.PaymentState {
	o.mu.Lock()
	defer o.unlock()
	return o.attempt.state
}

// HoldsFunds reports whether a card is between authorization and capture.
func (o *Orchestrator) HoldsFunds() bool {
	return o.State().HoldsFunds()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	a := o.attempt
	snap := Snapshot{
		AttemptID:  a.id,
		State:      a.state,
		Method:     a.method,
		Total:      a.total,
		Currency:   a.currency,
		Tendered:   a.tendered,
		Change:     a.change,
		ReaderID:   a.readerID,
		Authorized: a.authorized,
	}
	if len(a.readers) > 0 {
		snap.Readers = append([]Reader(nil), a.readers...)
	}
	if a.intent != nil {
		snap.IntentID = a.intent.ID
	}
	if a.lastError != nil {
		failure := *a.lastError
		snap.LastError = &failure
	}
	return snap
}

func (o *Orchestrator) transitionLocked(ctx context.Context, to enums.PaymentState) error {
	a := o.attempt
	from := a.state
	if !from.CanTransitionTo(to) {
		return illegalTransition(from, to)
	}
	a.state = to
	o.metrics.ObserveTransition(from.String(), to.String())
	if o.logg != nil {
		fields := map[string]any{
			"payment_attempt_id": a.id.String(),
			"from":               from,
			"to":                 to,
		}
		if to == enums.PaymentStateFailed && a.lastError != nil {
			fields["step"] = a.lastError.Step
			fields["error_message"] = a.lastError.Message
		}
		o.logg.Info(o.logg.WithFields(ctx, fields), "payment state changed")
	}
	change := StateChange{AttemptID: a.id, From: from, To: to}
	if to == enums.PaymentStateFailed && a.lastError != nil {
		failure := *a.lastError
		change.Failure = &failure
	}
	o.pending = append(o.pending, change)
	return nil
}

func (o *Orchestrator) requireLocked(states ...enums.PaymentState) error {
	current := o.attempt.state
	for _, s := range states {
		if current == s {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s", current)).WithDetails(map[string]any{
		"state":    current,
		"expected": states,
	})
}

// Begin opens an attempt for the checkout total.
func (o *Orchestrator) Begin(ctx context.Context, total decimal.Decimal) (Snapshot, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.requireLocked(enums.PaymentStateIdle); err != nil {
		return o.snapshotLocked(), err
	}
	if total.IsNegative() {
		return o.snapshotLocked(), pkgerrors.New(pkgerrors.CodeValidation, "total must be non-negative")
	}
	o.attempt.total = total
	if err := o.transitionLocked(ctx, enums.PaymentStateAwaitingMethod); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// SelectMethod chooses cash or card for the open attempt.
func (o *Orchestrator) SelectMethod(ctx context.Context, method enums.PaymentMethod) (Snapshot, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.requireLocked(enums.PaymentStateAwaitingMethod); err != nil {
		return o.snapshotLocked(), err
	}
	var next enums.PaymentState
	switch method {
	case enums.PaymentMethodCash:
		next = enums.PaymentStateCashTendering
	case enums.PaymentMethodCard:
		next = enums.PaymentStateCardDiscovering
	default:
		return o.snapshotLocked(), pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"method": method})
	}
	o.attempt.method = method
	if err := o.transitionLocked(ctx, next); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// Tender settles a cash attempt when the amount covers the total. A short
// tender is rejected and the attempt stays in cash_tendering.
func (o *Orchestrator) Tender(ctx context.Context, amount decimal.Decimal) (Snapshot, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.requireLocked(enums.PaymentStateCashTendering); err != nil {
		return o.snapshotLocked(), err
	}
	if amount.IsNegative() {
		return o.snapshotLocked(), pkgerrors.New(pkgerrors.CodeValidation, "tendered amount must be non-negative")
	}
	a := o.attempt
	change, ok := pricing.Change(amount, a.total)
	if !ok {
		return o.snapshotLocked(), pkgerrors.New(pkgerrors.CodeValidation, "tendered amount is less than total").WithDetails(map[string]any{
			"reason":   "insufficient_tender",
			"tendered": pricing.Round(amount).StringFixed(2),
			"total":    pricing.Round(a.total).StringFixed(2),
		})
	}
	tendered := pricing.Round(amount)
	a.tendered = &tendered
	a.change = &change
	if err := o.transitionLocked(ctx, enums.PaymentStateSettled); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// Discover lists readers for the card attempt. Zero readers is not a failure.
func (o *Orchestrator) Discover(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.requireLocked(enums.PaymentStateCardDiscovering); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	attemptID := o.attempt.id
	o.unlock()

	var readers []Reader
	err := o.timed(ctx, StepDiscover, o.opts.StepTimeout, func(stepCtx context.Context) error {
		var callErr error
		readers, callErr = o.gateway.DiscoverReaders(stepCtx)
		return callErr
	})

	o.mu.Lock()
	defer o.unlock()
	if !o.currentLocked(attemptID, enums.PaymentStateCardDiscovering) {
		return o.snapshotLocked(), superseded()
	}
	if err != nil {
		err = o.failLocked(ctx, StepDiscover, err)
		return o.snapshotLocked(), err
	}
	o.attempt.readers = readers
	o.attempt.lastError = nil
	return o.snapshotLocked(), nil
}

// Connect pairs the operator-chosen reader. A failed connection returns the
// attempt to discovery with the error attached; it is not retried.
func (o *Orchestrator) Connect(ctx context.Context, readerID string) (Snapshot, error) {
	readerID = strings.TrimSpace(readerID)
	o.mu.Lock()
	if readerID == "" {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, pkgerrors.New(pkgerrors.CodeValidation, "reader_id is required")
	}
	if err := o.requireLocked(enums.PaymentStateCardDiscovering); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	attemptID := o.attempt.id
	o.attempt.readerID = ""
	if err := o.transitionLocked(ctx, enums.PaymentStateCardConnecting); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.unlock()

	var reader Reader
	err := o.timed(ctx, StepConnect, o.opts.StepTimeout, func(stepCtx context.Context) error {
		var callErr error
		reader, callErr = o.gateway.ConnectReader(stepCtx, readerID)
		return callErr
	})

	o.mu.Lock()
	defer o.unlock()
	if !o.currentLocked(attemptID, enums.PaymentStateCardConnecting) {
		return o.snapshotLocked(), superseded()
	}
	if err != nil {
		o.attempt.lastError = &Failure{Step: StepConnect, Message: failureMessage(err)}
		if tErr := o.transitionLocked(ctx, enums.PaymentStateCardDiscovering); tErr != nil {
			return o.snapshotLocked(), tErr
		}
		return o.snapshotLocked(), stepError(StepConnect, err)
	}
	if reader.ID == "" {
		reader.ID = readerID
	}
	o.attempt.readerID = reader.ID
	o.attempt.lastError = nil
	return o.snapshotLocked(), nil
}

// Charge runs intent creation, collection, processing and capture against the
// connected reader. The intent is created once per attempt and reused after a
// restart; an attempt already authorized skips straight to capture. Failures
// land in failed and are never retried automatically.
func (o *Orchestrator) Charge(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.requireLocked(enums.PaymentStateCardConnecting); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	a := o.attempt
	if a.readerID == "" {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, "no card reader connected")
	}
	if o.charging {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, "a charge is already in progress")
	}
	o.charging = true
	attemptID := a.id
	readerID := a.readerID
	amountCents := pricing.Cents(a.total)
	currency := a.currency
	intent := a.intent
	authorized := a.authorized
	o.unlock()

	defer func() {
		o.mu.Lock()
		o.charging = false
		o.unlock()
	}()

	if intent != nil && intent.AmountCents != amountCents && !authorized {
		stale := *intent
		o.voidIntent(ctx, stale)
		intent = nil
	}

	if intent == nil {
		var created Intent
		err := o.timed(ctx, StepCreateIntent, o.opts.StepTimeout, func(stepCtx context.Context) error {
			var callErr error
			created, callErr = o.gateway.CreatePaymentIntent(stepCtx, IntentRequest{
				AttemptID:   attemptID,
				AmountCents: amountCents,
				Currency:    currency,
			})
			return callErr
		})
		o.mu.Lock()
		if !o.currentLocked(attemptID, enums.PaymentStateCardConnecting) {
			snap := o.snapshotLocked()
			o.unlock()
			if err == nil {
				o.voidIntent(ctx, created)
			}
			return snap, superseded()
		}
		if err != nil {
			err = o.failLocked(ctx, StepCreateIntent, err)
			snap := o.snapshotLocked()
			o.unlock()
			return snap, err
		}
		o.attempt.intent = &created
		intent = &created
		o.unlock()
	}

	collectCtx, cancelCollect := context.WithTimeout(ctx, o.opts.CollectTimeout)
	defer cancelCollect()

	o.mu.Lock()
	if !o.currentLocked(attemptID, enums.PaymentStateCardConnecting) {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, superseded()
	}
	if err := o.transitionLocked(ctx, enums.PaymentStateCardCollecting); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.collectCancel = cancelCollect
	o.unlock()

	var err error
	if authorized {
		if o.logg != nil {
			o.logg.Info(o.logg.WithAttemptID(ctx, attemptID.String()), "resuming authorized payment at capture")
		}
	} else {
		err = o.timed(collectCtx, StepCollect, o.opts.CollectTimeout, func(stepCtx context.Context) error {
			return o.gateway.CollectPaymentMethod(stepCtx, *intent, readerID)
		})
	}

	o.mu.Lock()
	o.collectCancel = nil
	if !o.currentLocked(attemptID, enums.PaymentStateCardCollecting) {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, collectionCancelled()
	}
	if err != nil {
		err = o.failLocked(ctx, StepCollect, err)
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	if err := o.transitionLocked(ctx, enums.PaymentStateCardProcessing); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.unlock()

	if !authorized {
		err = o.timed(ctx, StepProcess, o.opts.StepTimeout, func(stepCtx context.Context) error {
			return o.gateway.ProcessPayment(stepCtx, *intent)
		})
	}

	o.mu.Lock()
	if err != nil {
		err = o.failLocked(ctx, StepProcess, err)
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.attempt.authorized = true
	if err := o.transitionLocked(ctx, enums.PaymentStateCardCapturing); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.unlock()

	err = o.timed(ctx, StepCapture, o.opts.StepTimeout, func(stepCtx context.Context) error {
		return o.gateway.CapturePayment(stepCtx, *intent)
	})

	o.mu.Lock()
	defer o.unlock()
	if err != nil {
		err = o.failLocked(ctx, StepCapture, err)
		return o.snapshotLocked(), err
	}
	o.attempt.captured = true
	o.attempt.lastError = nil
	if err := o.transitionLocked(ctx, enums.PaymentStateSettled); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// CancelCollection aborts the wait for a card and returns to the connected
// reader. The intent is kept for the next charge.
func (o *Orchestrator) CancelCollection(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.requireLocked(enums.PaymentStateCardCollecting); err != nil {
		return o.snapshotLocked(), err
	}
	if o.collectCancel != nil {
		o.collectCancel()
		o.collectCancel = nil
	}
	if err := o.transitionLocked(ctx, enums.PaymentStateCardConnecting); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// Restart sends a failed card attempt back to reader discovery, keeping its intent.
func (o *Orchestrator) Restart(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.requireLocked(enums.PaymentStateFailed); err != nil {
		return o.snapshotLocked(), err
	}
	if o.attempt.method != enums.PaymentMethodCard {
		return o.snapshotLocked(), pkgerrors.New(pkgerrors.CodeStateConflict, "only card attempts can be restarted")
	}
	o.attempt.readers = nil
	o.attempt.readerID = ""
	o.attempt.lastError = nil
	if err := o.transitionLocked(ctx, enums.PaymentStateCardDiscovering); err != nil {
		return o.snapshotLocked(), err
	}
	return o.snapshotLocked(), nil
}

// Cancel abandons the attempt and returns to idle, voiding any open intent.
// It is refused while a card is between authorization and capture.
func (o *Orchestrator) Cancel(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	a := o.attempt
	switch {
	case a.state == enums.PaymentStateIdle:
		snap := o.snapshotLocked()
		o.unlock()
		return snap, nil
	case a.state == enums.PaymentStateSettled:
		snap := o.snapshotLocked()
		o.unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, "settled payments must be finalized")
	case a.state.HoldsFunds():
		snap := o.snapshotLocked()
		o.unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is being authorized and cannot be cancelled")
	}
	if o.collectCancel != nil {
		o.collectCancel()
		o.collectCancel = nil
	}
	var toVoid *Intent
	if a.intent != nil && !a.captured {
		in := *a.intent
		toVoid = &in
	}
	if err := o.transitionLocked(ctx, enums.PaymentStateIdle); err != nil {
		snap := o.snapshotLocked()
		o.unlock()
		return snap, err
	}
	o.attempt = o.idleAttempt()
	snap := o.snapshotLocked()
	o.unlock()

	if toVoid != nil {
		o.voidIntent(ctx, *toVoid)
	}
	return snap, nil
}

// Reset discards a settled attempt once its order is recorded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.unlock()
	if o.attempt.state == enums.PaymentStateSettled {
		o.attempt = o.idleAttempt()
	}
}

func (o *Orchestrator) voidIntent(ctx context.Context, intent Intent) {
	err := o.timed(ctx, StepCancel, o.opts.StepTimeout, func(stepCtx context.Context) error {
		return o.gateway.CancelPaymentIntent(stepCtx, intent)
	})
	if err != nil && o.logg != nil {
		o.logg.Error(o.logg.WithFields(ctx, map[string]any{
			"payment_attempt_id": intent.AttemptID.String(),
			"intent_id":          intent.ID,
		}), "failed to cancel payment intent", err)
	}
}

func (o *Orchestrator) timed(ctx context.Context, step Step, timeout time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	started := time.Now()
	err := fn(stepCtx)
	o.metrics.ObserveGatewayStep(string(step), time.Since(started), err)
	return err
}

func (o *Orchestrator) currentLocked(attemptID uuid.UUID, state enums.PaymentState) bool {
	return o.attempt.id == attemptID && o.attempt.state == state
}

func (o *Orchestrator) failLocked(ctx context.Context, step Step, cause error) error {
	o.attempt.lastError = &Failure{Step: step, Message: failureMessage(cause)}
	if err := o.transitionLocked(ctx, enums.PaymentStateFailed); err != nil {
		return err
	}
	return stepError(step, cause)
}

func stepError(step Step, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeGateway, cause, fmt.Sprintf("card %s failed", step)).WithDetails(map[string]any{
		"step":    step,
		"message": failureMessage(cause),
	})
}

func failureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out waiting for the card reader"
	case errors.Is(err, context.Canceled):
		return "card operation was cancelled"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func illegalTransition(from, to enums.PaymentState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment state transition disallowed").WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}

func superseded() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment attempt changed while the gateway call was running")
}

func collectionCancelled() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "card collection cancelled").WithDetails(map[string]any{
		"reason": "collection_cancelled",
	})
}
