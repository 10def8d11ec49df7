package command

import (
	"errors"
	"fmt"
)

// Pre-fraud rejection reasons, checked in this order.
const (
	ReasonCardNotActive       = "card not active"
	ReasonCardExpired         = "card expired"
	ReasonCardAccountMismatch = "card does not belong to account"
	ReasonAccountNotActive    = "account not active"
	ReasonInsufficientBalance = "insufficient balance"
)

// ReasonOK is stored on approved transaction rows.
const ReasonOK = "OK"

var (
	ErrFraudServiceUnavailable = errors.New("fraud service unavailable")
	ErrInvalidAmount           = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidType             = errors.New("transaction type must be DEBIT or CREDIT")
	ErrInvalidStatus           = errors.New("status must be ACTIVE or INACTIVE")
	ErrInvalidBalance          = errors.New("opening balance must be zero or positive with at most two decimal places")
	ErrInvalidCardNumber       = errors.New("invalid card number")
	ErrInvalidExpiry           = errors.New("card expiry is in the past")
)

// RejectedError is a business rule rejection raised before the fraud check.
// Nothing is written when it is returned.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}
