package query

import (
	"context"
	"fmt"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
	"github.com/cardbank/cms/shared/utils"
	"github.com/google/uuid"
)

// TransactionQueryService serves the transaction log. Single transactions
// come from the Redis projection fed by the transaction event stream.
type TransactionQueryService struct {
	store repository.ReadStore
	cache ViewCache[models.TransactionView]
}

func NewTransactionQueryService(store repository.ReadStore, cache ViewCache[models.TransactionView]) *TransactionQueryService {
	return &TransactionQueryService{store: store, cache: cache}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	key := q.TransactionID.String()
	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, key); ok {
			return view, nil
		}
	}

	tx, err := s.store.GetTransaction(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	view := models.TransactionToView(tx)
	if s.cache != nil {
		s.cache.Set(ctx, key, view)
	}
	return view, nil
}

// ListTransactions returns one page of an account's transactions, newest first.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
	if _, err := s.store.GetAccount(ctx, q.AccountID); err != nil {
		return nil, err
	}
	page, size := utils.NormalizePage(q.Page, q.Size)
	txs, total, err := s.store.ListTransactionsByAccount(ctx, q.AccountID, page, size)
	if err != nil {
		return nil, err
	}

	views := make([]models.TransactionView, 0, len(txs))
	for i := range txs {
		views = append(views, *models.TransactionToView(&txs[i]))
	}
	return &models.TransactionPage{Transactions: views, Page: page, Size: size, Total: total}, nil
}

// HandleTransactionEvent projects transaction.processed events into the
// view cache. It is the handler of the transaction stream subscriber.
func (s *TransactionQueryService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.TransactionProcessed || s.cache == nil {
		return nil
	}

	var data events.TransactionProcessedEvent
	if err := events.DecodeData(event, &data); err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformed, err)
	}
	if data.TransactionID == uuid.Nil {
		return fmt.Errorf("%w: transaction event without id", events.ErrMalformed)
	}

	s.cache.Set(ctx, data.TransactionID.String(), &models.TransactionView{
		ID:        data.TransactionID,
		AccountID: data.AccountID,
		CardID:    data.CardID,
		Amount:    data.Amount,
		Type:      models.TransactionType(data.Type),
		Outcome:   models.Outcome(data.Outcome),
		Reason:    data.Reason,
		CreatedAt: data.Timestamp,
	})
	return nil
}
