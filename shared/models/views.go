package models

import (
	"encoding/json"
	"time"

	"github.com/cardbank/cms/shared/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountView is the read-optimised projection of an account.
type AccountView struct {
	ID        uuid.UUID       `json:"id"`
	Status    AccountStatus   `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// Version orders projections of the same account; a higher version is a
// later commit.
func (v AccountView) Version() int64 {
	return v.UpdatedAt.UnixMicro()
}

// MarshalJSON renders the balance with exactly MoneyScale decimals.
func (v AccountView) MarshalJSON() ([]byte, error) {
	type plain AccountView
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
	}{plain(v), v.Balance.StringFixed(MoneyScale)})
}

// CardView is the public projection of a card. The number is only ever
// exposed masked.
type CardView struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"accountId"`
	Status     CardStatus `json:"status"`
	Expiry     string     `json:"expiry"`
	MaskedCard string     `json:"maskedCard"`
}

// TransactionView is the read-optimised projection of a transaction.
type TransactionView struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"accountId"`
	CardID    uuid.UUID       `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Outcome   Outcome         `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"timestamp"`
}

// MarshalJSON renders the amount with exactly MoneyScale decimals.
func (v TransactionView) MarshalJSON() ([]byte, error) {
	type plain TransactionView
	return json.Marshal(struct {
		plain
		Amount string `json:"amount"`
	}{plain(v), v.Amount.StringFixed(MoneyScale)})
}

// IDPage is one page of identifiers plus paging metadata.
type IDPage struct {
	IDs   []uuid.UUID `json:"ids"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int64       `json:"total"`
}

// ExpiryLayout is the wire format of card expiry dates.
const ExpiryLayout = "2006-01-02"

func AccountToView(a *Account) *AccountView {
	return &AccountView{
		ID:        a.ID,
		Status:    a.Status,
		Balance:   a.Balance.Round(MoneyScale),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func CardToView(c *Card) *CardView {
	return &CardView{
		ID:         c.ID,
		AccountID:  c.AccountID,
		Status:     c.Status,
		Expiry:     c.Expiry.Format(ExpiryLayout),
		MaskedCard: utils.MaskCardNumber(c.CardNumber),
	}
}

func TransactionToView(t *Transaction) *TransactionView {
	return &TransactionView{
		ID:        t.ID,
		AccountID: t.AccountID,
		CardID:    t.CardID,
		Amount:    t.Amount.Round(MoneyScale),
		Type:      t.Type,
		Outcome:   t.Outcome,
		Reason:    t.Reason,
		CreatedAt: t.CreatedAt,
	}
}

// TransactionPage is one page of an account's transactions, newest first.
type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Page         int               `json:"page"`
	Size         int               `json:"size"`
	Total        int64             `json:"total"`
}
