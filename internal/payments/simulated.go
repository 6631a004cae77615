package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// SimulatedGateway is an in-process gateway for development registers and tests.
// Failures can be injected per step and consume themselves after one call.
type SimulatedGateway struct {
	mu           sync.Mutex
	readers      []Reader
	failures     map[Step][]error
	intents      map[string]*simulatedIntent
	created      int
	collectDelay time.Duration
	calls        map[Step]int
}

type simulatedIntent struct {
	intent     Intent
	collected  bool
	authorized bool
	captured   bool
	voided     bool
}

// NewSimulatedGateway returns a gateway exposing the given readers.
func NewSimulatedGateway(readers ...Reader) *SimulatedGateway {
	if len(readers) == 0 {
		readers = []Reader{{ID: "sim-reader-1", Label: "Simulated Reader"}}
	}
	return &SimulatedGateway{
		readers:  readers,
		failures: map[Step][]error{},
		intents:  map[string]*simulatedIntent{},
		calls:    map[Step]int{},
	}
}

// FailNext makes the next call of step return err.
func (g *SimulatedGateway) FailNext(step Step, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[step] = append(g.failures[step], err)
}

// SetCollectDelay makes CollectPaymentMethod wait before a card is "presented".
func (g *SimulatedGateway) SetCollectDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.collectDelay = d
}

// IntentsCreated counts CreatePaymentIntent successes.
func (g *SimulatedGateway) IntentsCreated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}

// Calls counts invocations of a step, failed ones included.
func (g *SimulatedGateway) Calls(step Step) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[step]
}

// Captured reports whether the intent was captured.
func (g *SimulatedGateway) Captured(intentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	return ok && in.captured
}

// Voided reports whether the intent was cancelled.
func (g *SimulatedGateway) Voided(intentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	return ok && in.voided
}

func (g *SimulatedGateway) enter(step Step) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[step]++
	queue := g.failures[step]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.failures[step] = queue[1:]
	return err
}

// DiscoverReaders implements Gateway.
func (g *SimulatedGateway) DiscoverReaders(ctx context.Context) ([]Reader, error) {
	if err := g.enter(StepDiscover); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Reader, len(g.readers))
	copy(out, g.readers)
	return out, ctx.Err()
}

// ConnectReader implements Gateway.
func (g *SimulatedGateway) ConnectReader(_ context.Context, readerID string) (Reader, error) {
	if err := g.enter(StepConnect); err != nil {
		return Reader{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.readers {
		if r.ID == readerID {
			return r, nil
		}
	}
	return Reader{}, pkgerrors.New(pkgerrors.CodeNotFound, "card reader not found").WithDetail("reader_id", readerID)
}

// CreatePaymentIntent implements Gateway.
func (g *SimulatedGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (Intent, error) {
	if err := g.enter(StepCreateIntent); err != nil {
		return Intent{}, err
	}
	if req.AmountCents < 0 {
		return Intent{}, fmt.Errorf("negative amount %d", req.AmountCents)
	}
	intent := Intent{
		ID:          "sim_pi_" + uuid.NewString(),
		AttemptID:   req.AttemptID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	g.intents[intent.ID] = &simulatedIntent{intent: intent}
	return intent, nil
}

// CollectPaymentMethod implements Gateway.
func (g *SimulatedGateway) CollectPaymentMethod(ctx context.Context, intent Intent, _ string) error {
	if err := g.enter(StepCollect); err != nil {
		return err
	}
	g.mu.Lock()
	delay := g.collectDelay
	g.mu.Unlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return g.mutate(intent.ID, func(in *simulatedIntent) error {
		in.collected = true
		return nil
	})
}

// ProcessPayment implements Gateway.
func (g *SimulatedGateway) ProcessPayment(_ context.Context, intent Intent) error {
	if err := g.enter(StepProcess); err != nil {
		return err
	}
	return g.mutate(intent.ID, func(in *simulatedIntent) error {
		if !in.collected {
			return pkgerrors.New(pkgerrors.CodeGateway, "no payment method collected")
		}
		in.authorized = true
		return nil
	})
}

// CapturePayment implements Gateway.
func (g *SimulatedGateway) CapturePayment(_ context.Context, intent Intent) error {
	if err := g.enter(StepCapture); err != nil {
		return err
	}
	return g.mutate(intent.ID, func(in *simulatedIntent) error {
		if !in.authorized || in.voided {
			return pkgerrors.New(pkgerrors.CodeGateway, "payment is not authorized")
		}
		in.captured = true
		return nil
	})
}

// CancelPaymentIntent implements Gateway.
func (g *SimulatedGateway) CancelPaymentIntent(_ context.Context, intent Intent) error {
	if err := g.enter(StepCancel); err != nil {
		return err
	}
	return g.mutate(intent.ID, func(in *simulatedIntent) error {
		if in.captured {
			return pkgerrors.New(pkgerrors.CodeGateway, "captured payments cannot be cancelled")
		}
		in.voided = true
		return nil
	})
}

func (g *SimulatedGateway) mutate(id string, fn func(*simulatedIntent) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return fn(in)
}
