package enums

import "testing"

func TestPaymentStateTransitions(t *testing.T) {
	cases := []struct {
		from PaymentState
		to   PaymentState
		ok   bool
	}{
		{PaymentStateIdle, PaymentStateAwaitingMethod, true},
		{PaymentStateIdle, PaymentStateCashTendering, false},
		{PaymentStateAwaitingMethod, PaymentStateCardDiscovering, true},
		{PaymentStateCashTendering, PaymentStateSettled, true},
		{PaymentStateCardConnecting, PaymentStateCardDiscovering, true},
		{PaymentStateCardCollecting, PaymentStateCardConnecting, true},
		{PaymentStateCardCollecting, PaymentStateSettled, false},
		{PaymentStateCardProcessing, PaymentStateIdle, true},
		{PaymentStateFailed, PaymentStateCardDiscovering, true},
		{PaymentStateFailed, PaymentStateIdle, true},
		{PaymentStateSettled, PaymentStateIdle, false},
		{PaymentStateSettled, PaymentStateCardDiscovering, false},
		{PaymentStateIdle, PaymentStateIdle, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestPaymentStateHoldsFunds(t *testing.T) {
	for _, state := range validPaymentStates {
		want := state == PaymentStateCardProcessing || state == PaymentStateCardCapturing
		if state.HoldsFunds() != want {
			t.Fatalf("%s: expected HoldsFunds %v", state, want)
		}
	}
}

func TestParseDiscountTypeNormalizes(t *testing.T) {
	got, err := ParseDiscountType(" Percentage ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DiscountTypePercentage {
		t.Fatalf("expected percentage, got %q", got)
	}
	if _, err := ParseDiscountType("bogo"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
