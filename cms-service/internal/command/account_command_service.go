package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
)

// AccountCommandService opens accounts and changes their status. Balances
// only move through the transaction engine.
type AccountCommandService struct {
	store     repository.Store
	publisher EventPublisher
	views     AccountViewCache
}

func NewAccountCommandService(store repository.Store, publisher EventPublisher, views AccountViewCache) *AccountCommandService {
	return &AccountCommandService{store: store, publisher: publisher, views: views}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if cmd.Status == "" {
		cmd.Status = models.AccountActive
	}
	if !validAccountStatus(cmd.Status) {
		return nil, ErrInvalidStatus
	}
	if cmd.OpeningBalance.IsNegative() || !hasMoneyScale(cmd.OpeningBalance) {
		return nil, ErrInvalidBalance
	}

	account := &models.Account{Status: cmd.Status, Balance: cmd.OpeningBalance}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	slog.Info("Account created", "accountId", account.ID, "status", account.Status)

	s.cacheView(ctx, account)
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID: account.ID,
		Status:    string(account.Status),
		Balance:   account.Balance,
	})
	return account, nil
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.Account, error) {
	if !validAccountStatus(cmd.Status) {
		return nil, ErrInvalidStatus
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.LockAccountForUpdate(ctx, cmd.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	account.Status = cmd.Status
	if err := uow.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account update: %w", err)
	}
	slog.Info("Account updated", "accountId", account.ID, "status", account.Status)

	s.cacheView(ctx, account)
	s.publish(ctx, events.AccountUpdated, events.AccountUpdatedEvent{
		AccountID: account.ID,
		Status:    string(account.Status),
	})
	return account, nil
}

func (s *AccountCommandService) cacheView(ctx context.Context, account *models.Account) {
	if s.views != nil {
		s.views.Set(ctx, account.ID.String(), models.AccountToView(account))
	}
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, data); err != nil {
		slog.Error("Failed to publish event", "type", eventType, "error", err)
	}
}

func validAccountStatus(status models.AccountStatus) bool {
	return status == models.AccountActive || status == models.AccountInactive
}
