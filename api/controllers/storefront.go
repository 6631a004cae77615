package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/storefront"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

type quoteItemRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
	SKU       string     `json:"sku" validate:"omitempty,max=64"`
	Quantity  int        `json:"quantity" validate:"min=1,max=999"`
}

type quoteRequest struct {
	Items        []quoteItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	DiscountCode string             `json:"discount_code" validate:"omitempty,max=64"`
}

type quoteResponse struct {
	Currency string            `json:"currency"`
	Lines    []lineResponse    `json:"lines"`
	Discount *discountResponse `json:"discount,omitempty"`
	Totals   totalsResponse    `json:"totals"`
}

// StorefrontQuote prices an online basket with the storefront tax plan.
func StorefrontQuote(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := storefront.QuoteInput{DiscountCode: strings.TrimSpace(payload.DiscountCode)}
		for _, item := range payload.Items {
			input.Items = append(input.Items, storefront.Item{
				ProductID: item.ProductID,
				SKU:       strings.TrimSpace(item.SKU),
				Quantity:  item.Quantity,
			})
		}

		quote, err := svc.Quote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quoteResponse{
			Currency: quote.Currency,
			Lines:    newLineResponses(quote.Lines),
			Discount: newDiscountResponse(quote.Discount),
			Totals:   newTotalsResponse(quote.Figures),
		})
	}
}
