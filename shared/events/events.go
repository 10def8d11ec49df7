package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated = "account.created"
	AccountUpdated = "account.updated"

	CardCreated       = "card.created"
	CardStatusChanged = "card.status_changed"

	TransactionProcessed = "transaction.processed"

	FraudEvaluated = "fraud.evaluated"
)

// Stream names
const (
	AccountEventsStream     = "account.events"
	CardEventsStream        = "card.events"
	TransactionEventsStream = "transaction.events"
	FraudEventsStream       = "fraud.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Account events
type AccountCreatedEvent struct {
	AccountID uuid.UUID       `json:"accountId"`
	Status    string          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
}

type AccountUpdatedEvent struct {
	AccountID uuid.UUID `json:"accountId"`
	Status    string    `json:"status"`
}

// Card events. Card numbers never travel on the bus.
type CardCreatedEvent struct {
	CardID    uuid.UUID `json:"cardId"`
	AccountID uuid.UUID `json:"accountId"`
}

type CardStatusChangedEvent struct {
	CardID uuid.UUID `json:"cardId"`
	Status string    `json:"status"`
}

// Transaction events
type TransactionProcessedEvent struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	AccountID     uuid.UUID       `json:"accountId"`
	CardID        uuid.UUID       `json:"cardId"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Outcome       string          `json:"outcome"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Fraud events
type FraudEvaluatedEvent struct {
	CardID    uuid.UUID       `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	Approved  bool            `json:"approved"`
	Reason    string          `json:"reason"`
	EventTime time.Time       `json:"eventTime"`
}
