package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

type discountRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type startPaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=cash card"`
}

type cashTenderRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

type connectReaderRequest struct {
	ReaderID string `json:"reader_id" validate:"required,max=128"`
}

type finalizeRequest struct {
	ReceiptEmail string `json:"receipt_email" validate:"omitempty,email,max=254"`
}

func CheckoutApplyDiscount(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		return reg.ApplyDiscount(r.Context(), payload.Code)
	})
}

func CheckoutRemoveDiscount(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.RemoveDiscount(r.Context())
	})
}

// CheckoutStartPayment freezes the totals and opens a payment attempt.
func CheckoutStartPayment(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload startPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			return register.View{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		return reg.StartPayment(r.Context(), method)
	})
}

func CheckoutTenderCash(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload cashTenderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		return reg.TenderCash(r.Context(), payload.Amount)
	})
}

func CheckoutDiscoverReaders(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.DiscoverReaders(r.Context())
	})
}

func CheckoutConnectReader(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload connectReaderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		return reg.ConnectReader(r.Context(), strings.TrimSpace(payload.ReaderID))
	})
}

// CheckoutCharge blocks until the card is collected, authorized and captured,
// or the collection is cancelled from another request.
func CheckoutCharge(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.Charge(r.Context())
	})
}

func CheckoutCancelCollection(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.CancelCollection(r.Context())
	})
}

func CheckoutRestartCard(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.RestartCard(r.Context())
	})
}

func CheckoutCancelPayment(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.CancelPayment(r.Context())
	})
}

// CheckoutFinalize records the settled attempt as an order.
func CheckoutFinalize(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}

		var payload finalizeRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := reg.Finalize(r.Context(), strings.TrimSpace(payload.ReceiptEmail))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// CheckoutAcknowledgeReconciliation lets a manager clear a reconciliation alert.
func CheckoutAcknowledgeReconciliation(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.AcknowledgeReconciliation(r.Context())
	})
}
