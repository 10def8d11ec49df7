package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

type MemoryEventStore struct {
	mu     sync.RWMutex
	byCard map[uuid.UUID][]models.FraudEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{byCard: make(map[uuid.UUID][]models.FraudEvent)}
}

func (s *MemoryEventStore) Append(ctx context.Context, event *models.FraudEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCard[event.CardID] = append(s.byCard[event.CardID], *event)
	return nil
}

func (s *MemoryEventStore) CountSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, e := range s.byCard[cardID] {
		if !e.EventTime.Before(since) {
			count++
		}
	}
	return count, nil
}

// Events returns a copy of the card's recorded events.
func (s *MemoryEventStore) Events(cardID uuid.UUID) []models.FraudEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FraudEvent(nil), s.byCard[cardID]...)
}
