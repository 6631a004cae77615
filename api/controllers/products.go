package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

const productNameMaxLen = 120

type createProductRequest struct {
	Name          string           `json:"name" validate:"required,max=120"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	UnitPrice     decimal.Decimal  `json:"unit_price" validate:"money"`
	DiscountPrice *decimal.Decimal `json:"discount_price" validate:"omitempty,money"`
	SaleID        *uuid.UUID       `json:"sale_id"`
	Stock         int              `json:"stock" validate:"min=0"`
	Size          *string          `json:"size" validate:"omitempty,max=32"`
	Color         *string          `json:"color" validate:"omitempty,max=32"`
	Material      *string          `json:"material" validate:"omitempty,max=64"`
}

type createProductResponse struct {
	Product     productResponse `json:"product"`
	SKUDegraded bool            `json:"sku_degraded"`
}

// ProductCreate stores a variant and allocates its SKU. sku_degraded is set
// when the counter was unavailable and a fallback SKU was issued.
func ProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateProduct(r.Context(), catalog.CreateProductInput{
			Name:          validators.SanitizeString(payload.Name, productNameMaxLen),
			CategoryID:    payload.CategoryID,
			UnitPrice:     payload.UnitPrice,
			DiscountPrice: payload.DiscountPrice,
			SaleID:        payload.SaleID,
			Stock:         payload.Stock,
			Size:          payload.Size,
			Color:         payload.Color,
			Material:      payload.Material,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createProductResponse{
			Product:     newProductResponse(result.Product),
			SKUDegraded: result.SKUDegraded,
		})
	}
}

// ProductVariants lists the size/color variants sharing a name within a category.
func ProductVariants(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "name is required").WithDetail("field", "name"))
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if categoryID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "category_id is required").WithDetail("field", "category_id"))
			return
		}

		rows, err := svc.ListVariants(r.Context(), name, *categoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]productResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newProductResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"variants": out})
	}
}
