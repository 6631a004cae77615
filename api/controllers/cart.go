package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/register"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

type registerOp func(r *http.Request, reg *register.Register) (register.View, error)

// viewHandler runs op against the request's register and writes the resulting view.
func viewHandler(logg *logger.Logger, op registerOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}
		view, err := op(r, reg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRegisterResponse(view))
	}
}

type addLineRequest struct {
	SKU       string     `json:"sku" validate:"omitempty,max=64"`
	ProductID *uuid.UUID `json:"product_id"`
	Quantity  int        `json:"quantity" validate:"omitempty,min=1,max=999"`
}

type adjustLineRequest struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	VariantKey string    `json:"variant_key" validate:"max=128"`
	Delta      int       `json:"delta" validate:"required,min=-999,max=999"`
}

type removeLineRequest struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	VariantKey string    `json:"variant_key" validate:"max=128"`
}

func CartFetch(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.View(r.Context())
	})
}

// CartAddLine scans a variant by SKU or id. Quantity defaults to one.
func CartAddLine(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		sku := strings.TrimSpace(payload.SKU)
		if sku == "" && payload.ProductID == nil {
			return register.View{}, pkgerrors.New(pkgerrors.CodeValidation, "sku or product_id is required")
		}
		qty := payload.Quantity
		if qty == 0 {
			qty = 1
		}
		return reg.AddLine(r.Context(), catalog.ProductRef{ID: payload.ProductID, SKU: sku}, qty)
	})
}

// CartAdjustLine moves a line quantity by delta within [1, stock].
func CartAdjustLine(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload adjustLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		return reg.AdjustLine(r.Context(), payload.ProductID, payload.VariantKey, payload.Delta)
	})
}

func CartRemoveLine(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		var payload removeLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return register.View{}, err
		}
		return reg.RemoveLine(r.Context(), payload.ProductID, payload.VariantKey)
	})
}

func CartDiscard(logg *logger.Logger) http.HandlerFunc {
	return viewHandler(logg, func(r *http.Request, reg *register.Register) (register.View, error) {
		return reg.Discard(r.Context())
	})
}
