package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
	"github.com/cardbank/cms/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TransactionResult is the persisted outcome of a transaction that reached
// the fraud check. Transaction.Outcome tells approved and fraud-rejected
// results apart.
type TransactionResult struct {
	Transaction *models.Transaction
}

func (r *TransactionResult) Approved() bool {
	return r.Transaction.Outcome == models.Approved
}

// TransactionCommandService is the transaction engine. The account row stays
// locked from the first read until commit or rollback, including while the
// fraud service is called, so concurrent requests against one account are
// applied strictly one after another.
type TransactionCommandService struct {
	store        repository.Store
	fraud        FraudEvaluator
	publisher    EventPublisher
	accountViews AccountViewCache
	fraudTimeout time.Duration
	tracer       trace.Tracer
	now          func() time.Time
}

// NewTransactionCommandService wires the engine. publisher and accountViews
// may be nil.
func NewTransactionCommandService(
	store repository.Store,
	fraud FraudEvaluator,
	publisher EventPublisher,
	accountViews AccountViewCache,
	fraudTimeout time.Duration,
) *TransactionCommandService {
	return &TransactionCommandService{
		store:        store,
		fraud:        fraud,
		publisher:    publisher,
		accountViews: accountViews,
		fraudTimeout: fraudTimeout,
		tracer:       telemetry.Tracer("cms-service/command"),
		now:          time.Now,
	}
}

func (s *TransactionCommandService) ProcessTransaction(ctx context.Context, cmd cqrs.ProcessTransactionCommand) (*TransactionResult, error) {
	if !cmd.Type.Valid() {
		return nil, ErrInvalidType
	}
	if !validAmount(cmd.Amount) {
		return nil, ErrInvalidAmount
	}

	ctx, span := s.tracer.Start(ctx, "ProcessTransaction", trace.WithAttributes(
		attribute.String("account.id", cmd.AccountID.String()),
		attribute.String("card.id", cmd.CardID.String()),
		attribute.String("transaction.type", string(cmd.Type)),
	))
	defer span.End()

	result, account, err := s.process(ctx, cmd)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			span.SetAttributes(attribute.String("transaction.reason", rejected.Reason))
			slog.Info("Transaction rejected before fraud check",
				"accountId", cmd.AccountID, "cardId", cmd.CardID,
				"amount", cmd.Amount, "type", cmd.Type, "reason", rejected.Reason)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Transaction failed",
				"accountId", cmd.AccountID, "cardId", cmd.CardID, "error", err)
		}
		return nil, err
	}

	tx := result.Transaction
	span.SetAttributes(
		attribute.String("transaction.id", tx.ID.String()),
		attribute.String("transaction.outcome", string(tx.Outcome)),
	)
	slog.Info("Transaction processed",
		"transactionId", tx.ID, "accountId", tx.AccountID, "cardId", tx.CardID,
		"amount", tx.Amount, "type", tx.Type, "outcome", tx.Outcome, "reason", tx.Reason)

	s.afterCommit(ctx, tx, account)
	return result, nil
}

// process runs the locked section. The returned account is the committed
// state, or nil when the balance was not touched.
func (s *TransactionCommandService) process(ctx context.Context, cmd cqrs.ProcessTransactionCommand) (*TransactionResult, *models.Account, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.LockAccountForUpdate(ctx, cmd.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock account: %w", err)
	}
	card, err := uow.GetCard(ctx, cmd.CardID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load card: %w", err)
	}

	now := s.now().UTC()
	if reason := eligibility(account, card, cmd, now); reason != "" {
		return nil, nil, &RejectedError{Reason: reason}
	}

	decision, err := s.evaluateFraud(ctx, models.FraudCheckRequest{
		CardID:    cmd.CardID,
		Amount:    cmd.Amount,
		Timestamp: now,
	})
	if err != nil {
		return nil, nil, err
	}

	record := &models.Transaction{
		AccountID: cmd.AccountID,
		CardID:    cmd.CardID,
		Amount:    cmd.Amount,
		Type:      cmd.Type,
	}
	var updated *models.Account
	if decision.Approved {
		if cmd.Type == models.Debit {
			account.Balance = account.Balance.Sub(cmd.Amount)
		} else {
			account.Balance = account.Balance.Add(cmd.Amount)
		}
		if err := uow.SaveAccount(ctx, account); err != nil {
			return nil, nil, fmt.Errorf("failed to update balance: %w", err)
		}
		record.Outcome = models.Approved
		record.Reason = ReasonOK
		updated = account
	} else {
		record.Outcome = models.Rejected
		record.Reason = decision.Reason
	}

	saved, err := uow.AppendTransaction(ctx, record)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &TransactionResult{Transaction: saved}, updated, nil
}

func (s *TransactionCommandService) evaluateFraud(ctx context.Context, req models.FraudCheckRequest) (*models.FraudCheckResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fraudCtx, cancel := context.WithTimeout(ctx, s.fraudTimeout)
	defer cancel()

	decision, err := s.fraud.Evaluate(fraudCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrFraudServiceUnavailable, err)
	}
	if decision == nil {
		return nil, fmt.Errorf("%w: empty decision", ErrFraudServiceUnavailable)
	}
	return decision, nil
}

// eligibility returns the first failing pre-fraud rule, or "".
func eligibility(account *models.Account, card *models.Card, cmd cqrs.ProcessTransactionCommand, now time.Time) string {
	switch {
	case card.Status != models.CardActive:
		return ReasonCardNotActive
	case card.ExpiredOn(now):
		return ReasonCardExpired
	case card.AccountID != account.ID:
		return ReasonCardAccountMismatch
	case account.Status != models.AccountActive:
		return ReasonAccountNotActive
	case cmd.Type == models.Debit && account.Balance.LessThan(cmd.Amount):
		return ReasonInsufficientBalance
	}
	return ""
}

// afterCommit never changes the result of a committed transaction.
func (s *TransactionCommandService) afterCommit(ctx context.Context, tx *models.Transaction, account *models.Account) {
	if account != nil && s.accountViews != nil {
		s.accountViews.Set(ctx, account.ID.String(), models.AccountToView(account))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, events.TransactionProcessed, events.TransactionProcessedEvent{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		CardID:        tx.CardID,
		Amount:        tx.Amount,
		Type:          string(tx.Type),
		Outcome:       string(tx.Outcome),
		Reason:        tx.Reason,
		Timestamp:     tx.CreatedAt,
	}); err != nil {
		slog.Error("Failed to publish transaction.processed event", "transactionId", tx.ID, "error", err)
	}
}
