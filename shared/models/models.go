package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

type CardStatus string

const (
	CardActive   CardStatus = "ACTIVE"
	CardInactive CardStatus = "INACTIVE"
)

type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// Valid reports whether t is one of the supported transaction types.
func (t TransactionType) Valid() bool {
	return t == Debit || t == Credit
}

type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
)

// MoneyScale is the number of decimal places kept for balances and amounts.
const MoneyScale = 2

type Account struct {
	ID        uuid.UUID       `json:"id"`
	Status    AccountStatus   `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// Touch moves UpdatedAt to now at microsecond precision, the resolution
// PostgreSQL keeps. The result is always strictly after the previous value,
// so successive committed versions of an account are ordered by UpdatedAt.
func (a *Account) Touch(now time.Time) {
	next := now.UTC().Truncate(time.Microsecond)
	if !next.After(a.UpdatedAt) {
		next = a.UpdatedAt.Add(time.Microsecond)
	}
	a.UpdatedAt = next
}

// Card is a payment instrument bound to exactly one account. CardNumber holds
// the plaintext number in memory only; it is never serialised.
type Card struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"accountId"`
	Status     CardStatus `json:"status"`
	Expiry     time.Time  `json:"expiry"`
	CardNumber string     `json:"-"`
}

// ExpiredOn reports whether the card expiry date falls before the calendar
// date of now (UTC). A card expiring today is still usable.
func (c *Card) ExpiredOn(now time.Time) bool {
	return DateOf(c.Expiry).Before(DateOf(now))
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"accountId"`
	CardID    uuid.UUID       `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Outcome   Outcome         `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"timestamp"`
}

// FraudEvent is the audit record of one fraud evaluation attempt for a card.
type FraudEvent struct {
	ID        uuid.UUID       `json:"id"`
	CardID    uuid.UUID       `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	EventTime time.Time       `json:"eventTime"`
}

// FraudCheckRequest is the body sent to the fraud service.
type FraudCheckRequest struct {
	CardID    uuid.UUID       `json:"cardId" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Timestamp time.Time       `json:"timestamp" validate:"required"`
}

// FraudCheckResponse is the fraud service decision.
type FraudCheckResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}
