package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

// ConnectDB opens a pgx pool and pings it.
func ConnectDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type PostgresEventStore struct {
	db *pgxpool.Pool
}

func NewPostgresEventStore(db *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) Append(ctx context.Context, event *models.FraudEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO fraud_events (id, card_id, amount, event_time)
		VALUES ($1, $2, $3, $4)`,
		event.ID, event.CardID, event.Amount, event.EventTime,
	)
	if err != nil {
		return fmt.Errorf("failed to append fraud event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) CountSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM fraud_events
		WHERE card_id = $1 AND event_time >= $2`,
		cardID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fraud events: %w", err)
	}
	return count, nil
}
