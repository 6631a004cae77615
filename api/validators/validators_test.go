package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

type tenderPayload struct {
	Amount   decimal.Decimal  `json:"amount" validate:"money"`
	Discount *decimal.Decimal `json:"discount" validate:"omitempty,money"`
}

func decode(t *testing.T, body string) (tenderPayload, error) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	var payload tenderPayload
	err := DecodeJSONBody(req, &payload)
	return payload, err
}

func TestDecodeJSONBodyAcceptsMoney(t *testing.T) {
	payload, err := decode(t, `{"amount":"100.00","discount":"5.5"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payload.Amount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected amount %s", payload.Amount)
	}
}

func TestDecodeJSONBodyRejectsInvalidMoney(t *testing.T) {
	for _, body := range []string{
		`{"amount":"0"}`,
		`{"amount":"-4.00"}`,
		`{"amount":"1.005"}`,
		`{"amount":"10.00","discount":"0"}`,
	} {
		_, err := decode(t, body)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error got %v", body, err)
		}
	}
}

func TestDecodeJSONBodyRejectsUnknownAndTrailingData(t *testing.T) {
	if _, err := decode(t, `{"amount":"1.00","tip":"2.00"}`); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected unknown field rejection got %v", err)
	}
	if _, err := decode(t, `{"amount":"1.00"}{"amount":"2.00"}`); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing data rejection got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  Layla  ", 80, "Layla"},
		{"Silk \t\n Abaya", 0, "Silk Abaya"},
		{"Nour\x00Scarf", 0, "NourScarf"},
		{"عباءة حرير", 5, "عباءة"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestParseQueryUUID(t *testing.T) {
	req := httptest.NewRequest("GET", "/?category_id=not-a-uuid", nil)
	if _, err := ParseQueryUUID(req, "category_id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	req = httptest.NewRequest("GET", "/", nil)
	id, err := ParseQueryUUID(req, "category_id")
	if err != nil || id != nil {
		t.Fatalf("expected nil id and no error, got %v %v", id, err)
	}
}
