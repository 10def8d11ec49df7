package cqrs

import (
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProcessTransactionCommand struct {
	AccountID uuid.UUID
	CardID    uuid.UUID
	Amount    decimal.Decimal
	Type      models.TransactionType
}

type CreateAccountCommand struct {
	Status         models.AccountStatus
	OpeningBalance decimal.Decimal
}

// UpdateAccountCommand changes account status. Balances only move through
// transactions.
type UpdateAccountCommand struct {
	AccountID uuid.UUID
	Status    models.AccountStatus
}

type CreateCardCommand struct {
	AccountID  uuid.UUID
	CardNumber string
	Expiry     time.Time
}

type SetCardStatusCommand struct {
	CardID uuid.UUID
	Status models.CardStatus
}

type EvaluateFraudCommand struct {
	CardID    uuid.UUID
	Amount    decimal.Decimal
	EventTime time.Time
}

// ClientCredentialsCommand requests an access token for a registered client.
// An empty Scope asks for every scope the client is allowed.
type ClientCredentialsCommand struct {
	ClientID     string
	ClientSecret string
	Scope        string
}
