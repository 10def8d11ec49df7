package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
	"github.com/cardbank/cms/shared/utils"
)

// CardCommandService issues cards and flips their status. Card writes take
// the owning account's lock so they serialise with transactions on it.
type CardCommandService struct {
	store     repository.Store
	publisher EventPublisher
	views     CardViewCache
	now       func() time.Time
}

func NewCardCommandService(store repository.Store, publisher EventPublisher, views CardViewCache) *CardCommandService {
	return &CardCommandService{store: store, publisher: publisher, views: views, now: time.Now}
}

// CreateCard issues a new card in INACTIVE status.
func (s *CardCommandService) CreateCard(ctx context.Context, cmd cqrs.CreateCardCommand) (*models.Card, error) {
	number := utils.NormalizeCardNumber(cmd.CardNumber)
	if !utils.ValidateCardNumber(number) {
		return nil, ErrInvalidCardNumber
	}
	if models.DateOf(cmd.Expiry).Before(models.DateOf(s.now())) {
		return nil, ErrInvalidExpiry
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.LockAccountForUpdate(ctx, cmd.AccountID); err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	card := &models.Card{
		AccountID:  cmd.AccountID,
		Status:     models.CardInactive,
		Expiry:     models.DateOf(cmd.Expiry),
		CardNumber: number,
	}
	if err := uow.InsertCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit card: %w", err)
	}
	slog.Info("Card created", "cardId", card.ID, "accountId", card.AccountID)

	s.cacheView(ctx, card)
	s.publish(ctx, events.CardCreated, events.CardCreatedEvent{CardID: card.ID, AccountID: card.AccountID})
	return card, nil
}

// SetCardStatus activates or deactivates a card. Setting the current status
// again is a no-op.
func (s *CardCommandService) SetCardStatus(ctx context.Context, cmd cqrs.SetCardStatusCommand) (*models.Card, error) {
	if cmd.Status != models.CardActive && cmd.Status != models.CardInactive {
		return nil, ErrInvalidStatus
	}

	current, err := s.store.GetCard(ctx, cmd.CardID)
	if err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.LockAccountForUpdate(ctx, current.AccountID); err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	card, err := uow.GetCard(ctx, cmd.CardID)
	if err != nil {
		return nil, err
	}
	if card.Status == cmd.Status {
		return card, nil
	}
	card.Status = cmd.Status
	if err := uow.SaveCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit card update: %w", err)
	}
	slog.Info("Card status changed", "cardId", card.ID, "status", card.Status)

	s.cacheView(ctx, card)
	s.publish(ctx, events.CardStatusChanged, events.CardStatusChangedEvent{CardID: card.ID, Status: string(card.Status)})
	return card, nil
}

func (s *CardCommandService) cacheView(ctx context.Context, card *models.Card) {
	if s.views != nil {
		s.views.Set(ctx, card.ID.String(), models.CardToView(card))
	}
}

func (s *CardCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.CardEventsStream, eventType, data); err != nil {
		slog.Error("Failed to publish event", "type", eventType, "error", err)
	}
}
