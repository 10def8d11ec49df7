package cqrs

import "github.com/google/uuid"

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID uuid.UUID
}

// ---------- Card queries ----------

// GetCardQuery fetches a single card by id.
type GetCardQuery struct {
	CardID uuid.UUID
}

// ListCardIDsQuery pages through card ids, optionally scoped to one account.
type ListCardIDsQuery struct {
	AccountID *uuid.UUID
	Page      int
	Size      int
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction.
type GetTransactionQuery struct {
	TransactionID uuid.UUID
}

// ListTransactionsQuery pages through the transactions of an account, newest first.
type ListTransactionsQuery struct {
	AccountID uuid.UUID
	Page      int
	Size      int
}
