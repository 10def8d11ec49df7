package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

type mockCardViews struct {
	views map[string]*models.CardView
}

func (m *mockCardViews) Set(ctx context.Context, id string, view *models.CardView) {
	if m.views == nil {
		m.views = make(map[string]*models.CardView)
	}
	m.views[id] = view
}

func TestCreateCard(t *testing.T) {
	store := repository.NewMemoryStore()
	accountID := seedAccount(t, store, models.AccountActive, "0.00")
	publisher := &mockPublisher{}
	views := &mockCardViews{}
	svc := NewCardCommandService(store, publisher, views)

	tests := []struct {
		name    string
		cmd     cqrs.CreateCardCommand
		wantErr error
	}{
		{
			name: "success",
			cmd:  cqrs.CreateCardCommand{AccountID: accountID, CardNumber: "4111 1111 1111 1111", Expiry: nextYear()},
		},
		{
			name:    "bad checksum",
			cmd:     cqrs.CreateCardCommand{AccountID: accountID, CardNumber: "4111111111111112", Expiry: nextYear()},
			wantErr: ErrInvalidCardNumber,
		},
		{
			name:    "expiry in the past",
			cmd:     cqrs.CreateCardCommand{AccountID: accountID, CardNumber: "4111111111111111", Expiry: time.Now().AddDate(0, -1, 0)},
			wantErr: ErrInvalidExpiry,
		},
		{
			name:    "unknown account",
			cmd:     cqrs.CreateCardCommand{AccountID: uuid.New(), CardNumber: "4111111111111111", Expiry: nextYear()},
			wantErr: repository.ErrAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := svc.CreateCard(context.Background(), tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if card.Status != models.CardInactive {
				t.Errorf("new cards must start INACTIVE, got %s", card.Status)
			}
			if card.CardNumber != "4111111111111111" {
				t.Errorf("expected normalised number, got %q", card.CardNumber)
			}
			stored, err := store.GetCard(context.Background(), card.ID)
			if err != nil || stored.AccountID != accountID {
				t.Errorf("card not persisted: %v", err)
			}
			if view := views.views[card.ID.String()]; view == nil || view.MaskedCard != "**** **** **** 1111" {
				t.Errorf("expected masked view in cache, got %+v", view)
			}
		})
	}
	if len(publisher.events) != 1 || publisher.events[0].eventType != events.CardCreated {
		t.Errorf("expected one card.created event, got %+v", publisher.events)
	}
}

func TestSetCardStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	accountID := seedAccount(t, store, models.AccountActive, "0.00")
	cardID := seedCard(t, store, accountID, models.CardInactive, nextYear())
	publisher := &mockPublisher{}
	svc := NewCardCommandService(store, publisher, nil)

	card, err := svc.SetCardStatus(context.Background(), cqrs.SetCardStatusCommand{CardID: cardID, Status: models.CardActive})
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if card.Status != models.CardActive {
		t.Errorf("expected ACTIVE, got %s", card.Status)
	}
	if stored, _ := store.GetCard(context.Background(), cardID); stored.Status != models.CardActive {
		t.Errorf("status not persisted, got %s", stored.Status)
	}

	// Activating again changes nothing and publishes nothing.
	if _, err := svc.SetCardStatus(context.Background(), cqrs.SetCardStatusCommand{CardID: cardID, Status: models.CardActive}); err != nil {
		t.Fatalf("repeat activate failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Errorf("expected a single status event, got %d", len(publisher.events))
	}

	if _, err := svc.SetCardStatus(context.Background(), cqrs.SetCardStatusCommand{CardID: uuid.New(), Status: models.CardActive}); !errors.Is(err, repository.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound, got %v", err)
	}
	if _, err := svc.SetCardStatus(context.Background(), cqrs.SetCardStatusCommand{CardID: cardID, Status: "BLOCKED"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}
