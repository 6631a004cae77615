package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/enums"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "maison-pos",
		ExpirationMinutes: minutes,
	}
}

func TestMintAndParseRegisterToken(t *testing.T) {
	cfg := testJWTConfig(30)
	now := time.Now().UTC()
	staffID := uuid.New()

	token, err := MintRegisterToken(cfg, now, RegisterTokenPayload{
		StaffID:    staffID,
		RegisterID: "front-1",
		Role:       enums.StaffRoleManager,
		SessionID:  "session-abc",
	})
	if err != nil {
		t.Fatalf("mint register token: %v", err)
	}

	claims, err := ParseRegisterToken(cfg, token)
	if err != nil {
		t.Fatalf("parse register token: %v", err)
	}

	if claims.StaffID != staffID {
		t.Fatalf("expected staff_id %s, got %s", staffID, claims.StaffID)
	}
	if claims.RegisterID != "front-1" {
		t.Fatalf("unexpected register id %q", claims.RegisterID)
	}
	if claims.Role != enums.StaffRoleManager {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.SessionID() != "session-abc" {
		t.Fatalf("unexpected session id %q", claims.SessionID())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseRegisterTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintRegisterToken(cfg, time.Now(), RegisterTokenPayload{
		StaffID:    uuid.New(),
		RegisterID: "front-1",
		Role:       enums.StaffRoleCashier,
	})
	if err != nil {
		t.Fatalf("mint register token: %v", err)
	}

	if _, err := ParseRegisterToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseRegisterTokenExpired(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintRegisterToken(cfg, time.Now().Add(-time.Hour), RegisterTokenPayload{
		StaffID:    uuid.New(),
		RegisterID: "front-1",
		Role:       enums.StaffRoleCashier,
	})
	if err != nil {
		t.Fatalf("mint register token: %v", err)
	}

	_, err = ParseRegisterToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintRegisterTokenRejectsIncompletePayload(t *testing.T) {
	cfg := testJWTConfig(5)
	cases := []RegisterTokenPayload{
		{StaffID: uuid.New(), RegisterID: "front-1", Role: ""},
		{StaffID: uuid.Nil, RegisterID: "front-1", Role: enums.StaffRoleCashier},
		{StaffID: uuid.New(), RegisterID: " ", Role: enums.StaffRoleCashier},
	}
	for i, payload := range cases {
		if _, err := MintRegisterToken(cfg, time.Now(), payload); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
