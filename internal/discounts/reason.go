package discounts

import (
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// Reason explains why a code was not applied.
type Reason string

const (
	ReasonUnknown      Reason = "unknown"
	ReasonInactive     Reason = "inactive"
	ReasonExpired      Reason = "expired"
	ReasonExhausted    Reason = "exhausted"
	ReasonBelowMinimum Reason = "below_minimum"
)

var reasonMessages = map[Reason]string{
	ReasonUnknown:      "discount code not recognized",
	ReasonInactive:     "discount code is not active",
	ReasonExpired:      "discount code has expired",
	ReasonExhausted:    "discount code has reached its usage limit",
	ReasonBelowMinimum: "subtotal is below the minimum spend for this code",
}

func (r Reason) String() string { return string(r) }

func rejection(reason Reason, code string, extra map[string]any) error {
	details := map[string]any{
		"reason": reason,
		"code":   code,
	}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, reasonMessages[reason]).WithDetails(details)
}

// RejectionReason extracts the Reason from an error returned by Validate.
func RejectionReason(err error) (Reason, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(Reason)
	return reason, ok
}
