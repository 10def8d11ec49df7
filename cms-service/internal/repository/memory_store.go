package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

// lockTable hands out one single-slot semaphore per account id. Waiting for a
// slot honours context cancellation. An entry lives only while its account is
// held or waited on.
type lockTable struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int // holder plus waiters
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[uuid.UUID]*lockEntry)}
}

func (l *lockTable) join(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

func (l *lockTable) leave(id uuid.UUID, e *lockEntry) {
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

func (l *lockTable) acquire(ctx context.Context, id uuid.UUID) error {
	e := l.join(id)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.leave(id, e)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *lockTable) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	<-e.sem
	l.leave(id, e)
}

func (l *lockTable) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// MemoryStore keeps all state in process. Writes made through a unit of work
// are buffered and only become visible on Commit.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]models.Account
	cards        map[uuid.UUID]models.Card
	cardOrder    []uuid.UUID
	transactions map[uuid.UUID]models.Transaction
	txByAccount  map[uuid.UUID][]uuid.UUID
	locks        *lockTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]models.Account),
		cards:        make(map[uuid.UUID]models.Card),
		transactions: make(map[uuid.UUID]models.Transaction),
		txByAccount:  make(map[uuid.UUID][]uuid.UUID),
		locks:        newLockTable(),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	account.CreatedAt, account.UpdatedAt = now, now
	account.Balance = account.Balance.Round(models.MoneyScale)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (s *MemoryStore) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	return &card, nil
}

func (s *MemoryStore) ListCardIDs(ctx context.Context, accountID *uuid.UUID, page, size int) (*models.IDPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []uuid.UUID
	for _, id := range s.cardOrder {
		if accountID == nil || s.cards[id].AccountID == *accountID {
			matched = append(matched, id)
		}
	}
	return &models.IDPage{
		IDs:   window(matched, page, size),
		Page:  page,
		Size:  size,
		Total: int64(len(matched)),
	}, nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

// ListTransactionsByAccount returns newest first.
func (s *MemoryStore) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.txByAccount[accountID]
	newestFirst := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		newestFirst[len(ids)-1-i] = id
	}

	var out []models.Transaction
	for _, id := range window(newestFirst, page, size) {
		out = append(out, s.transactions[id])
	}
	return out, int64(len(ids)), nil
}

func window(ids []uuid.UUID, page, size int) []uuid.UUID {
	start := page * size
	if start >= len(ids) {
		return []uuid.UUID{}
	}
	end := start + size
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}

func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryUnit{
		store:    s,
		locked:   make(map[uuid.UUID]bool),
		accounts: make(map[uuid.UUID]models.Account),
		cards:    make(map[uuid.UUID]models.Card),
	}, nil
}

type memoryUnit struct {
	store        *MemoryStore
	locked       map[uuid.UUID]bool
	accounts     map[uuid.UUID]models.Account
	cards        map[uuid.UUID]models.Card
	newCards     []uuid.UUID
	transactions []models.Transaction
	done         bool
}

func (u *memoryUnit) LockAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if u.done {
		return nil, ErrUnitClosed
	}
	if !u.locked[id] {
		if _, err := u.store.GetAccount(ctx, id); err != nil {
			return nil, err
		}
		if err := u.store.locks.acquire(ctx, id); err != nil {
			return nil, err
		}
		u.locked[id] = true
	}
	if account, ok := u.accounts[id]; ok {
		return &account, nil
	}
	return u.store.GetAccount(ctx, id)
}

func (u *memoryUnit) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	if u.done {
		return nil, ErrUnitClosed
	}
	if card, ok := u.cards[id]; ok {
		return &card, nil
	}
	return u.store.GetCard(ctx, id)
}

func (u *memoryUnit) SaveAccount(ctx context.Context, account *models.Account) error {
	if u.done {
		return ErrUnitClosed
	}
	if !u.locked[account.ID] {
		return ErrAccountNotLocked
	}
	account.Touch(time.Now())
	account.Balance = account.Balance.Round(models.MoneyScale)
	u.accounts[account.ID] = *account
	return nil
}

func (u *memoryUnit) InsertCard(ctx context.Context, card *models.Card) error {
	if u.done {
		return ErrUnitClosed
	}
	if !u.locked[card.AccountID] {
		return ErrAccountNotLocked
	}
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	u.cards[card.ID] = *card
	u.newCards = append(u.newCards, card.ID)
	return nil
}

// SaveCard updates status and expiry. The owning account never changes.
func (u *memoryUnit) SaveCard(ctx context.Context, card *models.Card) error {
	if u.done {
		return ErrUnitClosed
	}
	stored, err := u.GetCard(ctx, card.ID)
	if err != nil {
		return err
	}
	if !u.locked[stored.AccountID] {
		return ErrAccountNotLocked
	}
	stored.Status = card.Status
	stored.Expiry = card.Expiry
	u.cards[card.ID] = *stored
	return nil
}

func (u *memoryUnit) AppendTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if u.done {
		return nil, ErrUnitClosed
	}
	saved := *tx
	saved.ID = uuid.New()
	saved.CreatedAt = time.Now().UTC()
	u.transactions = append(u.transactions, saved)
	return &saved, nil
}

func (u *memoryUnit) Commit() error {
	if u.done {
		return ErrUnitClosed
	}
	s := u.store
	s.mu.Lock()
	for id, account := range u.accounts {
		s.accounts[id] = account
	}
	for id, card := range u.cards {
		s.cards[id] = card
	}
	s.cardOrder = append(s.cardOrder, u.newCards...)
	for _, tx := range u.transactions {
		s.transactions[tx.ID] = tx
		s.txByAccount[tx.AccountID] = append(s.txByAccount[tx.AccountID], tx.ID)
	}
	s.mu.Unlock()

	u.finish()
	return nil
}

func (u *memoryUnit) Rollback() error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *memoryUnit) finish() {
	u.done = true
	for id := range u.locked {
		u.store.locks.release(id)
	}
	u.locked = nil
}
