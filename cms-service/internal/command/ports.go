package command

import (
	"context"

	"github.com/cardbank/cms/shared/models"
)

// FraudEvaluator is the remote fraud decision service. Any error means no
// decision was obtained.
type FraudEvaluator interface {
	Evaluate(ctx context.Context, req models.FraudCheckRequest) (*models.FraudCheckResponse, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AccountViewCache never replaces a cached view with one of a lower
// Version, so writes that land out of commit order leave the newest.
type AccountViewCache interface {
	Set(ctx context.Context, id string, view *models.AccountView)
}

type CardViewCache interface {
	Set(ctx context.Context, id string, view *models.CardView)
}
