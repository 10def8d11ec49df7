package repository

import (
	"context"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

// Store is the write side of accounts, cards and the transaction log.
// Every balance or card mutation goes through a UnitOfWork.
type Store interface {
	ReadStore
	Begin(ctx context.Context) (UnitOfWork, error)
	CreateAccount(ctx context.Context, account *models.Account) error
}

// UnitOfWork groups the reads and writes of one command. Accounts locked
// through LockAccountForUpdate stay exclusively held until Commit or Rollback.
// Rollback after Commit is a no-op, so callers can always defer it.
type UnitOfWork interface {
	LockAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	InsertCard(ctx context.Context, card *models.Card) error
	SaveCard(ctx context.Context, card *models.Card) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	Commit() error
	Rollback() error
}

// ReadStore serves committed state without taking locks.
type ReadStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCardIDs(ctx context.Context, accountID *uuid.UUID, page, size int) (*models.IDPage, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]models.Transaction, int64, error)
}
