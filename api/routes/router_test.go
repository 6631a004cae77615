package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/maison-pos/internal/register/registertest"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	env     *registertest.Env
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := registertest.New(t)
	handler := NewRouter(env.Config, nil, nil, nil, env.Registers, env.Staff, env.Catalog, env.Storefront, env.Receipts, nil)
	return &testServer{t: t, env: env, handler: handler}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body %s", err, resp.Body.String())
	}
	if dest == nil {
		return
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v body %s", err, resp.Body.String())
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error == nil {
		t.Fatalf("expected error envelope got %s", resp.Body.String())
	}
	return env.Error.Code
}

func expectStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("expected %d got %d body %s", want, resp.Code, resp.Body.String())
	}
}

func (s *testServer) login(registerID, staffID, pin string) string {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/api/v1/registers/"+registerID+"/session/login", "", map[string]string{"staff_id": staffID, "pin": pin})
	expectStatus(s.t, resp, http.StatusOK)
	var out struct {
		Token string `json:"token"`
	}
	decode(s.t, resp, &out)
	if out.Token == "" {
		s.t.Fatalf("login returned empty token")
	}
	return out.Token
}

func TestHealthLive(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/health/live", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header().Get("X-Maison-Env"); got != s.env.Config.App.Env {
		t.Fatalf("expected env header %q got %q", s.env.Config.App.Env, got)
	}
}

func TestHealthReadyWithoutDependencies(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/health/ready", "", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestStaffListIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/v1/staff", "", nil)
	expectStatus(t, resp, http.StatusOK)

	var out struct {
		Staff []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			Role        string `json:"role"`
		} `json:"staff"`
	}
	decode(t, resp, &out)
	if len(out.Staff) != 2 {
		t.Fatalf("expected 2 operators got %d", len(out.Staff))
	}
	if strings.Contains(resp.Body.String(), "pin") {
		t.Fatalf("staff list leaked a credential field: %s", resp.Body.String())
	}
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/v1/registers/front/session/login", "", map[string]string{"staff_id": s.env.CashierID.String(), "pin": "0000"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestRegisterRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/v1/registers/front/cart", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestTokenIsBoundToRegister(t *testing.T) {
	s := newTestServer(t)
	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)

	resp := s.do(http.MethodGet, "/api/v1/registers/back/cart", token, nil)
	expectStatus(t, resp, http.StatusForbidden)
}

func TestInvalidRegisterID(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/v1/registers/Bad_ID!/session", "", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCashSaleEndToEnd(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/registers/front"
	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)

	resp := s.do(http.MethodPost, base+"/cart/lines", token, map[string]any{"sku": s.env.Product.SKU, "quantity": 2})
	expectStatus(t, resp, http.StatusOK)
	var cart struct {
		ItemCount int `json:"item_count"`
		Lines     []struct {
			SKU         string `json:"sku"`
			Quantity    int    `json:"quantity"`
			MaxQuantity int    `json:"max_quantity"`
			LineTotal   string `json:"line_total"`
		} `json:"lines"`
		Totals struct {
			Subtotal string `json:"subtotal"`
			Tax      string `json:"tax"`
			Total    string `json:"total"`
		} `json:"totals"`
	}
	decode(t, resp, &cart)
	if cart.ItemCount != 2 || len(cart.Lines) != 1 {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if cart.Lines[0].MaxQuantity != 5 || cart.Lines[0].LineTotal != "84.00" {
		t.Fatalf("unexpected line %+v", cart.Lines[0])
	}
	if cart.Totals.Subtotal != "84.00" || cart.Totals.Tax != "10.92" || cart.Totals.Total != "94.92" {
		t.Fatalf("unexpected totals %+v", cart.Totals)
	}

	resp = s.do(http.MethodPost, base+"/checkout/payment", token, map[string]string{"method": "cash"})
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(http.MethodPost, base+"/cart/lines", token, map[string]any{"sku": s.env.Product.SKU})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = s.do(http.MethodPost, base+"/checkout/payment/cash", token, map[string]any{"amount": "50.00"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, base+"/checkout/payment/cash", token, map[string]any{"amount": "100.00"})
	expectStatus(t, resp, http.StatusOK)
	var paid struct {
		Payment struct {
			State  string `json:"state"`
			Change string `json:"change"`
		} `json:"payment"`
	}
	decode(t, resp, &paid)
	if paid.Payment.Change != "5.08" {
		t.Fatalf("expected change 5.08 got %+v", paid.Payment)
	}

	resp = s.do(http.MethodPost, base+"/checkout/finalize", token, map[string]string{"receipt_email": "client@example.com"}, "Idempotency-Key", "sale-1")
	expectStatus(t, resp, http.StatusCreated)
	var order struct {
		ID          string `json:"id"`
		OrderNumber int64  `json:"order_number"`
		Total       string `json:"total"`
		ChangeDue   string `json:"change_due"`
		LineItems   []struct {
			Quantity int `json:"quantity"`
		} `json:"line_items"`
	}
	decode(t, resp, &order)
	if order.Total != "94.92" || order.ChangeDue != "5.08" {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(order.LineItems) != 1 || order.LineItems[0].Quantity != 2 {
		t.Fatalf("unexpected line items %+v", order.LineItems)
	}

	resp = s.do(http.MethodGet, base+"/cart", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &cart)
	if len(cart.Lines) != 0 {
		t.Fatalf("expected empty cart after finalize got %+v", cart.Lines)
	}

	resp = s.do(http.MethodGet, "/api/v1/orders/"+order.ID+"/receipt", token, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text receipt got %q", ct)
	}
	receipt := resp.Body.String()
	for _, want := range []string{"MAISON NOOR", "94.92", "Amira", fmt.Sprint(order.OrderNumber)} {
		if !strings.Contains(receipt, want) {
			t.Fatalf("receipt missing %q:\n%s", want, receipt)
		}
	}
}

func TestFinalizeWithoutSettledPayment(t *testing.T) {
	s := newTestServer(t)
	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)

	resp := s.do(http.MethodPost, "/api/v1/registers/front/checkout/finalize", token, nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	if code := errorCode(t, resp); code != "STATE_CONFLICT" {
		t.Fatalf("expected STATE_CONFLICT got %s", code)
	}
}

func TestAdjustLineRejectsOutOfRangeDelta(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/registers/front"
	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)
	s.do(http.MethodPost, base+"/cart/lines", token, map[string]any{"sku": s.env.Product.SKU, "quantity": 1})

	resp := s.do(http.MethodPatch, base+"/cart/lines", token, map[string]any{
		"product_id": s.env.Product.ID.String(),
		"delta":      math.MaxInt64,
	})
	expectStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR got %s", code)
	}
}

func TestDiscountCodeFlow(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/registers/front"
	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)

	s.do(http.MethodPost, base+"/cart/lines", token, map[string]any{"product_id": s.env.Product.ID.String(), "quantity": 2})

	resp := s.do(http.MethodPost, base+"/checkout/discount", token, map[string]string{"code": "NOPE"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, base+"/checkout/discount", token, map[string]string{"code": "save10"})
	expectStatus(t, resp, http.StatusOK)
	var view struct {
		Discount *struct {
			Code   string `json:"code"`
			Amount string `json:"amount"`
		} `json:"discount"`
		Totals struct {
			Total string `json:"total"`
		} `json:"totals"`
	}
	decode(t, resp, &view)
	if view.Discount == nil || view.Discount.Amount != "8.40" {
		t.Fatalf("unexpected discount %+v", view.Discount)
	}
	if view.Totals.Total != "85.43" {
		t.Fatalf("expected total 85.43 got %s", view.Totals.Total)
	}

	resp = s.do(http.MethodDelete, base+"/checkout/discount", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &view)
	if view.Discount != nil {
		t.Fatalf("expected discount removed got %+v", view.Discount)
	}
}

func TestSessionStatusAndLogout(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/registers/front"

	var status struct {
		Active bool `json:"active"`
	}
	resp := s.do(http.MethodGet, base+"/session", "", nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &status)
	if status.Active {
		t.Fatalf("expected inactive register before login")
	}

	token := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)
	resp = s.do(http.MethodPost, base+"/session/activity", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &status)
	if !status.Active {
		t.Fatalf("expected active session")
	}

	resp = s.do(http.MethodPost, base+"/session/logout", token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(http.MethodGet, base+"/cart", token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestProductCreateIsManagerOnly(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{
		"name":        "Silk Hijab",
		"category_id": s.env.Category.ID.String(),
		"unit_price":  "18.50",
		"stock":       12,
		"color":       "Ivory",
	}

	cashier := s.login("front", s.env.CashierID.String(), registertest.CashierPIN)
	resp := s.do(http.MethodPost, "/api/v1/products", cashier, body, "Idempotency-Key", "hijab-1")
	expectStatus(t, resp, http.StatusForbidden)

	manager := s.login("back", s.env.ManagerID.String(), registertest.ManagerPIN)
	resp = s.do(http.MethodPost, "/api/v1/products", manager, body, "Idempotency-Key", "hijab-1")
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		Product struct {
			SKU   string `json:"sku"`
			Stock int    `json:"stock"`
		} `json:"product"`
		SKUDegraded bool `json:"sku_degraded"`
	}
	decode(t, resp, &created)
	if !strings.HasPrefix(created.Product.SKU, "MA-ABA-") || created.SKUDegraded {
		t.Fatalf("unexpected created product %+v", created)
	}

	resp = s.do(http.MethodGet, "/api/v1/products/variants?name=Silk+Hijab&category_id="+s.env.Category.ID.String(), manager, nil)
	expectStatus(t, resp, http.StatusOK)
	var variants struct {
		Variants []struct {
			SKU string `json:"sku"`
		} `json:"variants"`
	}
	decode(t, resp, &variants)
	if len(variants.Variants) != 1 || variants.Variants[0].SKU != created.Product.SKU {
		t.Fatalf("unexpected variants %+v", variants)
	}
}

func TestStaffCreateRequiresManager(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"display_name": "  Layla  ", "role": "cashier", "pin": "5050"}

	resp := s.do(http.MethodPost, "/api/v1/staff", "", body)
	expectStatus(t, resp, http.StatusUnauthorized)

	manager := s.login("front", s.env.ManagerID.String(), registertest.ManagerPIN)
	resp = s.do(http.MethodPost, "/api/v1/staff", manager, body, "Idempotency-Key", "layla")
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	decode(t, resp, &created)
	if created.DisplayName != "Layla" || created.Role != "cashier" {
		t.Fatalf("unexpected staff %+v", created)
	}
}

func TestStorefrontQuoteIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/v1/storefront/quote", "", map[string]any{
		"items": []map[string]any{{"sku": s.env.Product.SKU, "quantity": 2}},
	})
	expectStatus(t, resp, http.StatusOK)
	var quote struct {
		Currency string `json:"currency"`
		Totals   struct {
			Tax           string `json:"tax"`
			Total         string `json:"total"`
			TaxComponents []struct {
				Amount string `json:"amount"`
			} `json:"tax_components"`
		} `json:"totals"`
	}
	decode(t, resp, &quote)
	if quote.Currency != "CAD" || quote.Totals.Total != "94.92" {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if len(quote.Totals.TaxComponents) != 2 {
		t.Fatalf("expected federal and provincial components got %+v", quote.Totals.TaxComponents)
	}
}

func TestStorefrontQuoteRejectsEmptyBasket(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/v1/storefront/quote", "", map[string]any{"items": []any{}})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestReceiptRequiresToken(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/v1/orders/"+s.env.Product.ID.String()+"/receipt", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}
