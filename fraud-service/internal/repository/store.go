package repository

import (
	"context"
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
)

// EventStore is the append-only log of fraud evaluation attempts.
type EventStore interface {
	Append(ctx context.Context, event *models.FraudEvent) error
	// CountSince counts the card's events with EventTime >= since.
	CountSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error)
}
