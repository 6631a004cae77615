package controllers

import (
	"net/http"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/receipts"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

const OrderIDParam = "orderId"

// OrderReceipt renders the printable receipt for a finalized order.
func OrderReceipt(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(r, OrderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, err := svc.Render(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteText(w, http.StatusOK, body)
	}
}
