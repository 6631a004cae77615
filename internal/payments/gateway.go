package payments

import (
	"context"

	"github.com/google/uuid"
)

// Step names a card flow call for failures, logs and metrics.
type Step string

const (
	StepDiscover     Step = "discover"
	StepConnect      Step = "connect"
	StepCreateIntent Step = "create_intent"
	StepCollect      Step = "collect"
	StepProcess      Step = "process"
	StepCapture      Step = "capture"
	StepCancel       Step = "cancel"
)

// Reader is a card terminal the register can pair with.
type Reader struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// IntentRequest asks the gateway to open a payment intent for an amount.
type IntentRequest struct {
	AttemptID   uuid.UUID
	AmountCents int64
	Currency    string
}

// Intent is a gateway-side payment record, authorized by ProcessPayment and
// settled by CapturePayment.
type Intent struct {
	ID          string
	AttemptID   uuid.UUID
	AmountCents int64
	Currency    string
}

// Gateway is the card hardware and processor boundary.
type Gateway interface {
	DiscoverReaders(ctx context.Context) ([]Reader, error)
	ConnectReader(ctx context.Context, readerID string) (Reader, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	// CollectPaymentMethod blocks until a card is presented on the reader or ctx ends.
	CollectPaymentMethod(ctx context.Context, intent Intent, readerID string) error
	ProcessPayment(ctx context.Context, intent Intent) error
	CapturePayment(ctx context.Context, intent Intent) error
	CancelPaymentIntent(ctx context.Context, intent Intent) error
}
