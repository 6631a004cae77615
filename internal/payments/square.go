package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/square"
)

type squareTerminal interface {
	Devices() []square.Device
	Device(id string) (square.Device, error)
	AwaitCard(ctx context.Context, deviceID string, amountCents int64) (string, error)
	Authorize(ctx context.Context, params square.PaymentAuthorizeParams) (string, error)
	Capture(ctx context.Context, paymentID string) error
	Void(ctx context.Context, paymentID string) error
}

// SquareGateway adapts the Square terminal to Gateway. Intents live in memory:
// each holds the collected card source and, once authorized, the Square payment id.
type SquareGateway struct {
	terminal squareTerminal

	mu      sync.Mutex
	intents map[string]*squareIntent
}

type squareIntent struct {
	intent      Intent
	readerID    string
	sourceID    string
	collections int
	paymentID   string
}

// NewSquareGateway wraps a configured terminal.
func NewSquareGateway(terminal squareTerminal) (*SquareGateway, error) {
	if terminal == nil {
		return nil, fmt.Errorf("square terminal required")
	}
	return &SquareGateway{terminal: terminal, intents: map[string]*squareIntent{}}, nil
}

// DiscoverReaders implements Gateway.
func (g *SquareGateway) DiscoverReaders(ctx context.Context) ([]Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devices := g.terminal.Devices()
	readers := make([]Reader, 0, len(devices))
	for _, d := range devices {
		readers = append(readers, Reader{ID: d.ID, Label: d.Name})
	}
	return readers, nil
}

// ConnectReader implements Gateway.
func (g *SquareGateway) ConnectReader(ctx context.Context, readerID string) (Reader, error) {
	if err := ctx.Err(); err != nil {
		return Reader{}, err
	}
	device, err := g.terminal.Device(readerID)
	if err != nil {
		return Reader{}, err
	}
	return Reader{ID: device.ID, Label: device.Name}, nil
}

// CreatePaymentIntent implements Gateway. The intent id later seeds the Square
// idempotency key, so reprocessing the same collected card cannot charge twice.
func (g *SquareGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	if req.AmountCents <= 0 {
		return Intent{}, pkgerrors.New(pkgerrors.CodeValidation, "card amount must be positive")
	}
	intent := Intent{
		ID:          uuid.NewString(),
		AttemptID:   req.AttemptID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intent.ID] = &squareIntent{intent: intent}
	return intent, nil
}

// CollectPaymentMethod implements Gateway.
func (g *SquareGateway) CollectPaymentMethod(ctx context.Context, intent Intent, readerID string) error {
	if _, err := g.lookup(intent.ID); err != nil {
		return err
	}
	sourceID, err := g.terminal.AwaitCard(ctx, readerID, intent.AmountCents)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intent.ID]
	if !ok {
		return intentNotFound(intent.ID)
	}
	in.readerID = readerID
	in.sourceID = sourceID
	in.collections++
	return nil
}

// ProcessPayment implements Gateway by authorizing with delayed capture.
func (g *SquareGateway) ProcessPayment(ctx context.Context, intent Intent) error {
	in, err := g.lookup(intent.ID)
	if err != nil {
		return err
	}
	if in.sourceID == "" {
		return pkgerrors.New(pkgerrors.CodeGateway, "no card collected for payment")
	}
	paymentID, err := g.terminal.Authorize(ctx, square.PaymentAuthorizeParams{
		AmountCents:    in.intent.AmountCents,
		Currency:       in.intent.Currency,
		SourceID:       in.sourceID,
		IdempotencyKey: idempotencyKey(in.intent.ID, in.collections),
		ReferenceID:    in.intent.AttemptID.String(),
		Note:           "register sale",
	})
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.intents[intent.ID]; ok {
		current.paymentID = paymentID
	}
	return nil
}

// CapturePayment implements Gateway. A captured intent is forgotten; a failed
// capture keeps it so the step can be retried.
func (g *SquareGateway) CapturePayment(ctx context.Context, intent Intent) error {
	in, err := g.lookup(intent.ID)
	if err != nil {
		return err
	}
	if in.paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeGateway, "payment is not authorized")
	}
	if err := g.terminal.Capture(ctx, in.paymentID); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.intents, intent.ID)
	return nil
}

// CancelPaymentIntent implements Gateway, voiding any authorization.
func (g *SquareGateway) CancelPaymentIntent(ctx context.Context, intent Intent) error {
	in, err := g.lookup(intent.ID)
	if err != nil {
		return err
	}
	if in.paymentID != "" {
		if err := g.terminal.Void(ctx, in.paymentID); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.intents, intent.ID)
	return nil
}

// PaymentID returns the Square payment id authorized for an open intent.
func (g *SquareGateway) PaymentID(intentID string) string {
	in, err := g.lookup(intentID)
	if err != nil {
		return ""
	}
	return in.paymentID
}

func (g *SquareGateway) lookup(id string) (squareIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return squareIntent{}, intentNotFound(id)
	}
	return *in, nil
}

// idempotencyKey changes only when a new card is collected for the intent.
// Square caps keys at 45 characters; a uuid plus suffix fits.
func idempotencyKey(intentID string, collection int) string {
	return fmt.Sprintf("%s-%d", intentID, collection)
}

func intentNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found").WithDetail("intent_id", id)
}
