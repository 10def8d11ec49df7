package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardbank/cms/fraud-service/internal/repository"
	"github.com/cardbank/cms/fraud-service/internal/rules"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/models"
	"github.com/cardbank/cms/shared/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidRequest = errors.New("invalid fraud check request")

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// FraudCommandService evaluates attempts. Every evaluated attempt is recorded,
// including declined ones, so repeated retries of one request each count
// towards the frequency rule.
type FraudCommandService struct {
	store     repository.EventStore
	policy    rules.Policy
	publisher EventPublisher
	tracer    trace.Tracer
}

// NewFraudCommandService builds the service; publisher may be nil.
func NewFraudCommandService(store repository.EventStore, policy rules.Policy, publisher EventPublisher) *FraudCommandService {
	return &FraudCommandService{
		store:     store,
		policy:    policy,
		publisher: publisher,
		tracer:    telemetry.Tracer("fraud-service/command"),
	}
}

func (s *FraudCommandService) Evaluate(ctx context.Context, cmd cqrs.EvaluateFraudCommand) (*models.FraudCheckResponse, error) {
	if cmd.CardID == uuid.Nil || cmd.EventTime.IsZero() {
		return nil, ErrInvalidRequest
	}

	ctx, span := s.tracer.Start(ctx, "EvaluateFraud", trace.WithAttributes(
		attribute.String("card.id", cmd.CardID.String()),
	))
	defer span.End()

	prior, err := s.store.CountSince(ctx, cmd.CardID, s.policy.WindowStart(cmd.EventTime))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	decision := s.policy.Evaluate(cmd.Amount, prior)

	if err := s.store.Append(ctx, &models.FraudEvent{
		CardID:    cmd.CardID,
		Amount:    cmd.Amount,
		EventTime: cmd.EventTime,
	}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	span.SetAttributes(
		attribute.Int64("fraud.prior_attempts", prior),
		attribute.Bool("fraud.approved", decision.Approved),
		attribute.String("fraud.reason", decision.Reason),
	)

	slog.Info("Fraud evaluated",
		"cardId", cmd.CardID, "amount", cmd.Amount, "priorAttempts", prior,
		"approved", decision.Approved, "reason", decision.Reason)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.FraudEventsStream, events.FraudEvaluated, events.FraudEvaluatedEvent{
			CardID:    cmd.CardID,
			Amount:    cmd.Amount,
			Approved:  decision.Approved,
			Reason:    decision.Reason,
			EventTime: cmd.EventTime,
		}); err != nil {
			slog.Error("Failed to publish fraud.evaluated event", "cardId", cmd.CardID, "error", err)
		}
	}

	return &models.FraudCheckResponse{Approved: decision.Approved, Reason: decision.Reason}, nil
}
