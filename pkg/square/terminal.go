package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// Device is a card reader paired with the Square location.
type Device struct {
	ID   string
	Name string
}

// CardSource waits for a card to be presented on a reader and returns the
// Square source id (nonce) that identifies it.
type CardSource interface {
	AwaitCard(ctx context.Context, deviceID string, amountCents int64) (string, error)
}

// StaticSource returns a fixed source id, used with Square sandbox nonces.
type StaticSource string

// AwaitCard implements CardSource.
func (s StaticSource) AwaitCard(ctx context.Context, _ string, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("card source id is empty")
	}
	return string(s), nil
}

// Terminal drives card-present payments against the Square Payments API:
// authorize with autocomplete disabled, then complete or cancel.
type Terminal struct {
	client  *Client
	devices []Device
	source  CardSource
}

// NewTerminal wires the reader inventory and card source to a Square client.
func NewTerminal(client *Client, cfg config.SquareConfig, source CardSource) (*Terminal, error) {
	if client == nil {
		return nil, errors.New("square client is required")
	}
	if source == nil {
		// A fixed nonce never waits for a physical card, so it is only
		// accepted against the sandbox.
		if cfg.Environment() != "sandbox" {
			return nil, fmt.Errorf("square %s environment needs a card source; the static nonce is sandbox only", cfg.Environment())
		}
		source = StaticSource(cfg.SourceID)
	}
	devices := make([]Device, 0, len(cfg.DeviceIDs))
	for _, raw := range cfg.DeviceIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		devices = append(devices, Device{ID: id, Name: fmt.Sprintf("Square Reader %s", id)})
	}
	return &Terminal{client: client, devices: devices, source: source}, nil
}

// Devices lists the readers configured for this location.
func (t *Terminal) Devices() []Device {
	out := make([]Device, len(t.devices))
	copy(out, t.devices)
	return out
}

// Device returns the configured reader with the given id.
func (t *Terminal) Device(id string) (Device, error) {
	for _, d := range t.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, pkgerrors.New(pkgerrors.CodeNotFound, "card reader not found").WithDetails(map[string]any{"reader_id": id})
}

// AwaitCard blocks until a card is presented on the device or ctx ends.
func (t *Terminal) AwaitCard(ctx context.Context, deviceID string, amountCents int64) (string, error) {
	sourceID, err := t.source.AwaitCard(ctx, deviceID, amountCents)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "card collection failed")
	}
	return sourceID, nil
}

// Authorize places a hold for the amount using the collected source.
func (t *Terminal) Authorize(ctx context.Context, params PaymentAuthorizeParams) (string, error) {
	payment, err := t.client.AuthorizePayment(ctx, params)
	if err != nil {
		return "", err
	}
	status := strings.ToUpper(stringValue(payment.GetStatus()))
	if status != "APPROVED" && status != "COMPLETED" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "card payment was not approved").
			WithDetails(map[string]any{"status": status})
	}
	return stringValue(payment.GetID()), nil
}

// Capture completes an approved payment.
func (t *Terminal) Capture(ctx context.Context, paymentID string) error {
	payment, err := t.client.CompletePayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if status := strings.ToUpper(stringValue(payment.GetStatus())); status != "COMPLETED" {
		return pkgerrors.New(pkgerrors.CodeGateway, "card payment was not captured").
			WithDetails(map[string]any{"status": status})
	}
	return nil
}

// Void cancels an approved payment that has not been captured.
func (t *Terminal) Void(ctx context.Context, paymentID string) error {
	_, err := t.client.CancelPayment(ctx, paymentID)
	return err
}
