package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/square"
)

type fakeTerminal struct {
	authorizeKeys []string
	captured      []string
	voided        []string
	nextSource    int
	captureErr    error
}

func (f *fakeTerminal) Devices() []square.Device {
	return []square.Device{{ID: "dev-1", Name: "Front Counter"}}
}

func (f *fakeTerminal) Device(id string) (square.Device, error) {
	if id != "dev-1" {
		return square.Device{}, pkgerrors.New(pkgerrors.CodeNotFound, "card reader not found")
	}
	return square.Device{ID: id, Name: "Front Counter"}, nil
}

func (f *fakeTerminal) AwaitCard(context.Context, string, int64) (string, error) {
	f.nextSource++
	return "cnon:card-" + string(rune('a'+f.nextSource)), nil
}

func (f *fakeTerminal) Authorize(_ context.Context, params square.PaymentAuthorizeParams) (string, error) {
	f.authorizeKeys = append(f.authorizeKeys, params.IdempotencyKey)
	return "pay_" + params.IdempotencyKey, nil
}

func (f *fakeTerminal) Capture(_ context.Context, paymentID string) error {
	if err := f.captureErr; err != nil {
		f.captureErr = nil
		return err
	}
	f.captured = append(f.captured, paymentID)
	return nil
}

func (f *fakeTerminal) Void(_ context.Context, paymentID string) error {
	f.voided = append(f.voided, paymentID)
	return nil
}

func TestSquareGatewayFlow(t *testing.T) {
	term := &fakeTerminal{}
	gw, err := NewSquareGateway(term)
	require.NoError(t, err)
	ctx := context.Background()

	readers, err := gw.DiscoverReaders(ctx)
	require.NoError(t, err)
	require.Len(t, readers, 1)

	_, err = gw.ConnectReader(ctx, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	intent, err := gw.CreatePaymentIntent(ctx, IntentRequest{AttemptID: uuid.New(), AmountCents: 4237, Currency: "CAD"})
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsCode(gw.ProcessPayment(ctx, intent), pkgerrors.CodeGateway))

	require.NoError(t, gw.CollectPaymentMethod(ctx, intent, "dev-1"))
	require.NoError(t, gw.ProcessPayment(ctx, intent))
	require.NoError(t, gw.ProcessPayment(ctx, intent))
	require.Len(t, term.authorizeKeys, 2)
	assert.Equal(t, term.authorizeKeys[0], term.authorizeKeys[1])

	require.NoError(t, gw.CollectPaymentMethod(ctx, intent, "dev-1"))
	require.NoError(t, gw.ProcessPayment(ctx, intent))
	assert.NotEqual(t, term.authorizeKeys[0], term.authorizeKeys[2])
	assert.LessOrEqual(t, len(term.authorizeKeys[2]), 45)

	paymentID := gw.PaymentID(intent.ID)
	require.NotEmpty(t, paymentID)
	require.NoError(t, gw.CapturePayment(ctx, intent))
	assert.Equal(t, []string{paymentID}, term.captured)

	assert.Empty(t, gw.PaymentID(intent.ID), "captured intents are released")
	assert.True(t, pkgerrors.IsCode(gw.CapturePayment(ctx, intent), pkgerrors.CodeNotFound))
}

func TestSquareGatewayFailedCaptureKeepsIntent(t *testing.T) {
	term := &fakeTerminal{captureErr: pkgerrors.New(pkgerrors.CodeGateway, "square unavailable")}
	gw, err := NewSquareGateway(term)
	require.NoError(t, err)
	ctx := context.Background()

	intent, err := gw.CreatePaymentIntent(ctx, IntentRequest{AttemptID: uuid.New(), AmountCents: 1500, Currency: "CAD"})
	require.NoError(t, err)
	require.NoError(t, gw.CollectPaymentMethod(ctx, intent, "dev-1"))
	require.NoError(t, gw.ProcessPayment(ctx, intent))

	assert.True(t, pkgerrors.IsCode(gw.CapturePayment(ctx, intent), pkgerrors.CodeGateway))
	assert.NotEmpty(t, gw.PaymentID(intent.ID))

	require.NoError(t, gw.CapturePayment(ctx, intent))
	assert.Len(t, term.captured, 1)
	assert.Empty(t, gw.PaymentID(intent.ID))
}

func TestSquareGatewayCancelVoidsAuthorization(t *testing.T) {
	term := &fakeTerminal{}
	gw, err := NewSquareGateway(term)
	require.NoError(t, err)
	ctx := context.Background()

	intent, err := gw.CreatePaymentIntent(ctx, IntentRequest{AttemptID: uuid.New(), AmountCents: 1000, Currency: "CAD"})
	require.NoError(t, err)
	require.NoError(t, gw.CollectPaymentMethod(ctx, intent, "dev-1"))
	require.NoError(t, gw.ProcessPayment(ctx, intent))

	require.NoError(t, gw.CancelPaymentIntent(ctx, intent))
	assert.Len(t, term.voided, 1)
	assert.True(t, pkgerrors.IsCode(gw.CapturePayment(ctx, intent), pkgerrors.CodeNotFound))

	_, err = gw.CreatePaymentIntent(ctx, IntentRequest{AttemptID: uuid.New(), AmountCents: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
