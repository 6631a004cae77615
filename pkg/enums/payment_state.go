package enums

import "fmt"

// PaymentState is the position of a register payment attempt in its lifecycle.
type PaymentState string

const (
	PaymentStateIdle            PaymentState = "idle"
	PaymentStateAwaitingMethod  PaymentState = "awaiting_method"
	PaymentStateCashTendering   PaymentState = "cash_tendering"
	PaymentStateCardDiscovering PaymentState = "card_discovering"
	PaymentStateCardConnecting  PaymentState = "card_connecting"
	PaymentStateCardCollecting  PaymentState = "card_collecting"
	PaymentStateCardProcessing  PaymentState = "card_processing"
	PaymentStateCardCapturing   PaymentState = "card_capturing"
	PaymentStateSettled         PaymentState = "settled"
	PaymentStateFailed          PaymentState = "failed"
)

var validPaymentStates = []PaymentState{
	PaymentStateIdle,
	PaymentStateAwaitingMethod,
	PaymentStateCashTendering,
	PaymentStateCardDiscovering,
	PaymentStateCardConnecting,
	PaymentStateCardCollecting,
	PaymentStateCardProcessing,
	PaymentStateCardCapturing,
	PaymentStateSettled,
	PaymentStateFailed,
}

// paymentTransitions lists the allowed successors of each state. Cancel back to
// idle is handled separately for every non-terminal state.
var paymentTransitions = map[PaymentState][]PaymentState{
	PaymentStateIdle:            {PaymentStateAwaitingMethod},
	PaymentStateAwaitingMethod:  {PaymentStateCashTendering, PaymentStateCardDiscovering},
	PaymentStateCashTendering:   {PaymentStateSettled, PaymentStateFailed},
	PaymentStateCardDiscovering: {PaymentStateCardConnecting, PaymentStateFailed},
	PaymentStateCardConnecting:  {PaymentStateCardCollecting, PaymentStateCardDiscovering, PaymentStateFailed},
	PaymentStateCardCollecting:  {PaymentStateCardProcessing, PaymentStateCardConnecting, PaymentStateFailed},
	PaymentStateCardProcessing:  {PaymentStateCardCapturing, PaymentStateFailed},
	PaymentStateCardCapturing:   {PaymentStateSettled, PaymentStateFailed},
	PaymentStateFailed:          {PaymentStateCardDiscovering},
}

// String implements fmt.Stringer.
func (s PaymentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentState.
func (s PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt has resolved.
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateSettled || s == PaymentStateFailed
}

// IsCard reports whether the state belongs to the card terminal path.
func (s PaymentState) IsCard() bool {
	switch s {
	case PaymentStateCardDiscovering, PaymentStateCardConnecting, PaymentStateCardCollecting,
		PaymentStateCardProcessing, PaymentStateCardCapturing:
		return true
	}
	return false
}

// HoldsFunds reports whether money may be authorized but not yet captured.
func (s PaymentState) HoldsFunds() bool {
	return s == PaymentStateCardProcessing || s == PaymentStateCardCapturing
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s PaymentState) CanTransitionTo(next PaymentState) bool {
	if next == PaymentStateIdle {
		return s != PaymentStateIdle && s != PaymentStateSettled
	}
	for _, candidate := range paymentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
