package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cardbank/cms/shared/fieldcrypt"
	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

//go:embed schema.sql
var Schema string

// PostgresStore is the database/sql implementation of Store. Card numbers are
// encrypted with crypt before they are written.
type PostgresStore struct {
	db    *sql.DB
	crypt *fieldcrypt.Encryptor
}

func NewPostgresStore(db *sql.DB, crypt *fieldcrypt.Encryptor) *PostgresStore {
	return &PostgresStore{db: db, crypt: crypt}
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	account.CreatedAt, account.UpdatedAt = now, now
	account.Balance = account.Balance.Round(models.MoneyScale)

	query := `
		INSERT INTO accounts (id, status, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.Status, account.Balance, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, status, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return getCard(ctx, s.db, s.crypt, id)
}

func (s *PostgresStore) ListCardIDs(ctx context.Context, accountID *uuid.UUID, page, size int) (*models.IDPage, error) {
	var (
		filter string
		args   []any
	)
	if accountID != nil {
		filter = "WHERE account_id = $1"
		args = append(args, *accountID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM cards "+filter, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count cards: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id FROM cards %s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d
	`, filter, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, size, page*size)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return &models.IDPage{IDs: ids, Page: page, Size: size, Total: total}, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, card_id, amount, type, outcome, reason, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(
		&tx.ID, &tx.AccountID, &tx.CardID, &tx.Amount,
		&tx.Type, &tx.Outcome, &tx.Reason, &tx.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (s *PostgresStore) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM transactions WHERE account_id = $1", accountID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, card_id, amount, type, outcome, reason, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, size, page*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.AccountID, &tx.CardID, &tx.Amount,
			&tx.Type, &tx.Outcome, &tx.Reason, &tx.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}

// Begin opens a database transaction bound to ctx; cancelling ctx rolls it
// back and releases every row lock it holds.
func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresUnit{tx: tx, crypt: s.crypt, locked: make(map[uuid.UUID]bool)}, nil
}

type postgresUnit struct {
	tx     *sql.Tx
	crypt  *fieldcrypt.Encryptor
	locked map[uuid.UUID]bool
	done   bool
}

func (u *postgresUnit) LockAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := scanAccount(u.tx.QueryRowContext(ctx, `
		SELECT id, status, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}
	u.locked[id] = true
	return account, nil
}

func (u *postgresUnit) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return getCard(ctx, u.tx, u.crypt, id)
}

func (u *postgresUnit) SaveAccount(ctx context.Context, account *models.Account) error {
	if !u.locked[account.ID] {
		return ErrAccountNotLocked
	}
	account.Touch(time.Now())
	account.Balance = account.Balance.Round(models.MoneyScale)
	_, err := u.tx.ExecContext(ctx, `
		UPDATE accounts SET status = $2, balance = $3, updated_at = $4
		WHERE id = $1
	`, account.ID, account.Status, account.Balance, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (u *postgresUnit) InsertCard(ctx context.Context, card *models.Card) error {
	if !u.locked[card.AccountID] {
		return ErrAccountNotLocked
	}
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	sealed, err := u.crypt.Encrypt(card.CardNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt card number: %w", err)
	}
	_, err = u.tx.ExecContext(ctx, `
		INSERT INTO cards (id, account_id, status, expiry, card_number)
		VALUES ($1, $2, $3, $4, $5)
	`, card.ID, card.AccountID, card.Status, models.DateOf(card.Expiry), sealed)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

func (u *postgresUnit) SaveCard(ctx context.Context, card *models.Card) error {
	if !u.locked[card.AccountID] {
		return ErrAccountNotLocked
	}
	res, err := u.tx.ExecContext(ctx, `
		UPDATE cards SET status = $2, expiry = $3
		WHERE id = $1 AND account_id = $4
	`, card.ID, card.Status, models.DateOf(card.Expiry), card.AccountID)
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (u *postgresUnit) AppendTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	saved := *tx
	saved.ID = uuid.New()
	saved.CreatedAt = time.Now().UTC()
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, card_id, amount, type, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		saved.ID, saved.AccountID, saved.CardID, saved.Amount,
		saved.Type, saved.Outcome, saved.Reason, saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return &saved, nil
}

func (u *postgresUnit) Commit() error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (u *postgresUnit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.Status, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func getCard(ctx context.Context, q queryer, crypt *fieldcrypt.Encryptor, id uuid.UUID) (*models.Card, error) {
	var (
		card   models.Card
		sealed string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, account_id, status, expiry, card_number
		FROM cards
		WHERE id = $1
	`, id).Scan(&card.ID, &card.AccountID, &card.Status, &card.Expiry, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if card.CardNumber, err = crypt.Decrypt(sealed); err != nil {
		return nil, fmt.Errorf("failed to decrypt card %s: %w", card.ID, err)
	}
	return &card, nil
}
