package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// paymentsAPI is the slice of the Square Payments API used by the register.
type paymentsAPI interface {
	Create(ctx context.Context, req *sq.CreatePaymentRequest) (*sq.Payment, error)
	Complete(ctx context.Context, req *sq.CompletePaymentRequest) (*sq.Payment, error)
	Cancel(ctx context.Context, req *sq.CancelPaymentsRequest) (*sq.Payment, error)
}

type sdkPayments struct {
	sdk *sqclient.Client
}

func (p sdkPayments) Create(ctx context.Context, req *sq.CreatePaymentRequest) (*sq.Payment, error) {
	resp, err := p.sdk.Payments.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.GetPayment(), nil
}

func (p sdkPayments) Complete(ctx context.Context, req *sq.CompletePaymentRequest) (*sq.Payment, error) {
	resp, err := p.sdk.Payments.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.GetPayment(), nil
}

func (p sdkPayments) Cancel(ctx context.Context, req *sq.CancelPaymentsRequest) (*sq.Payment, error) {
	resp, err := p.sdk.Payments.Cancel(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.GetPayment(), nil
}

// Client exposes Square primitives with centralized auth, logging, idempotency, and error mapping.
type Client struct {
	payments    paymentsAPI
	environment string
	locationID  string
	logger      *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		payments:    sdkPayments{sdk: sdk},
		environment: env,
		locationID:  locationID,
		logger:      logg,
	}

	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID returns the Square location payments are booked against.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "pos"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// AuthorizePayment creates a delayed-capture payment. Square returns the
// original payment when the idempotency key is replayed with the same body.
func (c *Client) AuthorizePayment(ctx context.Context, params PaymentAuthorizeParams) (*sq.Payment, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.authorize", params.IdempotencyKey))
	c.log(ctx, "request", "authorize_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"source_id":    params.SourceID,
	})

	payment, err := c.payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "authorize_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "authorize payment")
	}

	c.log(ctx, "response", "authorize_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// CompletePayment captures a previously authorized payment.
func (c *Client) CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	req := &sq.CompletePaymentRequest{PaymentID: paymentID}
	c.log(ctx, "request", "complete_payment", map[string]any{"payment_id": paymentID})

	payment, err := c.payments.Complete(ctx, req)
	if err != nil {
		c.log(ctx, "error", "complete_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "complete payment")
	}

	c.log(ctx, "response", "complete_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// CancelPayment voids an authorized payment that has not been captured.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	req := &sq.CancelPaymentsRequest{PaymentID: paymentID}
	c.log(ctx, "request", "cancel_payment", map[string]any{"payment_id": paymentID})

	payment, err := c.payments.Cancel(ctx, req)
	if err != nil {
		c.log(ctx, "error", "cancel_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "cancel payment")
	}

	c.log(ctx, "response", "cancel_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "source", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		details := map[string]any{"status": apiErr.StatusCode}
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			details["square_code"] = string(sqErr.Code)
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op)).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

// domainCodeForStatus maps Square HTTP statuses onto register error codes.
// Declines and upstream failures surface as gateway errors so the payment
// flow moves to failed instead of retrying.
func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeGateway
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
