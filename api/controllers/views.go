package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

// Money is always rendered as a fixed two-decimal string.
func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func moneyPtr(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := money(*v)
	return &s
}

func nullMoney(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := money(v.Decimal)
	return &s
}

type registerResponse struct {
	RegisterID      string                   `json:"register_id"`
	Currency        string                   `json:"currency"`
	Lines           []lineResponse           `json:"lines"`
	ItemCount       int                      `json:"item_count"`
	Discount        *discountResponse        `json:"discount,omitempty"`
	DiscountDropped *droppedDiscountResponse `json:"discount_dropped,omitempty"`
	Totals          totalsResponse           `json:"totals"`
	Payment         paymentResponse          `json:"payment"`
	Alert           *alertResponse           `json:"reconciliation_alert,omitempty"`
}

type droppedDiscountResponse struct {
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type lineResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	VariantKey  string    `json:"variant_key"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Size        string    `json:"size,omitempty"`
	Color       string    `json:"color,omitempty"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	MaxQuantity int       `json:"max_quantity"`
	LineTotal   string    `json:"line_total"`
}

type discountResponse struct {
	Code   string `json:"code"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Amount string `json:"amount"`
}

type taxComponentResponse struct {
	Name   string `json:"name"`
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type totalsResponse struct {
	Subtotal      string                 `json:"subtotal"`
	Discount      string                 `json:"discount"`
	Taxable       string                 `json:"taxable"`
	Tax           string                 `json:"tax"`
	TaxComponents []taxComponentResponse `json:"tax_components"`
	Total         string                 `json:"total"`
}

type paymentResponse struct {
	AttemptID  *uuid.UUID        `json:"attempt_id,omitempty"`
	State      string            `json:"state"`
	Method     string            `json:"method,omitempty"`
	Total      string            `json:"total"`
	Currency   string            `json:"currency,omitempty"`
	Tendered   *string           `json:"tendered,omitempty"`
	Change     *string           `json:"change,omitempty"`
	Readers    []payments.Reader `json:"readers,omitempty"`
	ReaderID   string            `json:"reader_id,omitempty"`
	IntentID   string            `json:"intent_id,omitempty"`
	Authorized bool              `json:"authorized"`
	LastError  *payments.Failure `json:"last_error,omitempty"`
}

type alertResponse struct {
	PaymentAttemptID uuid.UUID `json:"payment_attempt_id"`
	PaymentIntentID  string    `json:"payment_intent_id,omitempty"`
	Method           string    `json:"method"`
	Total            string    `json:"total"`
	Message          string    `json:"message"`
	RaisedAt         time.Time `json:"raised_at"`
}

func newRegisterResponse(view register.View) registerResponse {
	resp := registerResponse{
		RegisterID: view.RegisterID,
		Currency:   view.Currency,
		Lines:      newLineResponses(view.Lines),
		ItemCount:  view.ItemCount,
		Discount:   newDiscountResponse(view.Discount),
		Totals:     newTotalsResponse(view.Figures),
		Payment:    newPaymentResponse(view.Payment),
	}
	if d := view.DiscountDropped; d != nil {
		resp.DiscountDropped = &droppedDiscountResponse{
			Code:    d.Code,
			Reason:  d.Reason.String(),
			Message: d.Message,
		}
	}
	if a := view.Alert; a != nil {
		resp.Alert = &alertResponse{
			PaymentAttemptID: a.PaymentAttemptID,
			PaymentIntentID:  a.PaymentIntentID,
			Method:           string(a.Method),
			Total:            money(a.Total),
			Message:          a.Message,
			RaisedAt:         a.RaisedAt,
		}
	}
	return resp
}

func newLineResponses(lines []cart.Line) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineResponse{
			ProductID:   l.ProductID,
			VariantKey:  l.VariantKey,
			SKU:         l.SKU,
			Name:        l.Name,
			Size:        l.Size,
			Color:       l.Color,
			UnitPrice:   money(l.UnitPrice),
			Quantity:    l.Quantity,
			MaxQuantity: l.Ceiling,
			LineTotal:   money(pricing.Round(l.Total())),
		})
	}
	return out
}

func newDiscountResponse(d *discounts.Applied) *discountResponse {
	if d == nil {
		return nil
	}
	return &discountResponse{
		Code:   d.Code,
		Type:   string(d.Type),
		Value:  d.Value.String(),
		Amount: money(d.Amount),
	}
}

func newTotalsResponse(f pricing.Figures) totalsResponse {
	components := make([]taxComponentResponse, 0, len(f.Components))
	for _, c := range f.Components {
		components = append(components, taxComponentResponse{Name: c.Name, Rate: c.Rate.String(), Amount: money(c.Amount)})
	}
	return totalsResponse{
		Subtotal:      money(f.Subtotal),
		Discount:      money(f.Discount),
		Taxable:       money(f.Taxable),
		Tax:           money(f.Tax),
		TaxComponents: components,
		Total:         money(f.Total),
	}
}

func newPaymentResponse(s payments.Snapshot) paymentResponse {
	resp := paymentResponse{
		State:      string(s.State),
		Method:     string(s.Method),
		Total:      money(s.Total),
		Currency:   s.Currency,
		Tendered:   moneyPtr(s.Tendered),
		Change:     moneyPtr(s.Change),
		Readers:    s.Readers,
		ReaderID:   s.ReaderID,
		IntentID:   s.IntentID,
		Authorized: s.Authorized,
		LastError:  s.LastError,
	}
	if s.AttemptID != uuid.Nil {
		id := s.AttemptID
		resp.AttemptID = &id
	}
	return resp
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      int64               `json:"order_number"`
	RegisterID       string              `json:"register_id"`
	StaffID          uuid.UUID           `json:"staff_id"`
	Status           string              `json:"status"`
	Currency         string              `json:"currency"`
	Subtotal         string              `json:"subtotal"`
	DiscountCode     *string             `json:"discount_code,omitempty"`
	DiscountAmount   string              `json:"discount_amount"`
	Taxable          string              `json:"taxable"`
	Tax              string              `json:"tax"`
	TaxComponents    json.RawMessage     `json:"tax_components"`
	Total            string              `json:"total"`
	PaymentMethod    string              `json:"payment_method"`
	AmountTendered   *string             `json:"amount_tendered,omitempty"`
	ChangeDue        *string             `json:"change_due,omitempty"`
	PaymentAttemptID uuid.UUID           `json:"payment_attempt_id"`
	PaymentIntentID  *string             `json:"payment_intent_id,omitempty"`
	ReceiptEmail     *string             `json:"receipt_email,omitempty"`
	LineItems        []orderLineResponse `json:"line_items"`
	CreatedAt        time.Time           `json:"created_at"`
}

type orderLineResponse struct {
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	VariantKey string    `json:"variant_key"`
	UnitPrice  string    `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	LineTotal  string    `json:"line_total"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		items = append(items, orderLineResponse{
			ProductID:  item.ProductID,
			SKU:        item.SKU,
			Name:       item.Name,
			VariantKey: item.VariantKey,
			UnitPrice:  money(item.UnitPrice),
			Quantity:   item.Quantity,
			LineTotal:  money(item.LineTotal),
		})
	}
	return orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		RegisterID:       o.RegisterID,
		StaffID:          o.StaffID,
		Status:           string(o.Status),
		Currency:         o.Currency,
		Subtotal:         money(o.Subtotal),
		DiscountCode:     o.DiscountCode,
		DiscountAmount:   money(o.DiscountAmount),
		Taxable:          money(o.TaxableAmount),
		Tax:              money(o.Tax),
		TaxComponents:    o.TaxComponents,
		Total:            money(o.Total),
		PaymentMethod:    string(o.PaymentMethod),
		AmountTendered:   nullMoney(o.AmountTendered),
		ChangeDue:        nullMoney(o.ChangeDue),
		PaymentAttemptID: o.PaymentAttemptID,
		PaymentIntentID:  o.PaymentIntentID,
		ReceiptEmail:     o.ReceiptEmail,
		LineItems:        items,
		CreatedAt:        o.CreatedAt,
	}
}

type productResponse struct {
	ID            uuid.UUID `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	CategoryID    uuid.UUID `json:"category_id"`
	UnitPrice     string    `json:"unit_price"`
	DiscountPrice *string   `json:"discount_price,omitempty"`
	Stock         int       `json:"stock"`
	Size          *string   `json:"size,omitempty"`
	Color         *string   `json:"color,omitempty"`
	Material      *string   `json:"material,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func newProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		CategoryID:    p.CategoryID,
		UnitPrice:     money(p.UnitPrice),
		DiscountPrice: nullMoney(p.DiscountPrice),
		Stock:         p.Stock,
		Size:          p.Size,
		Color:         p.Color,
		Material:      p.Material,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
	}
}
