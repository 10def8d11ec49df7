package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cardbank/cms/shared/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const fraudEventKeyPrefix = "fraud:card:"

// RedisEventStore keeps one sorted set per card, scored by event time in
// microseconds. Keys expire retention after their last write.
type RedisEventStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisEventStore(client *redis.Client, retention time.Duration) *RedisEventStore {
	return &RedisEventStore{client: client, retention: retention}
}

func cardKey(cardID uuid.UUID) string {
	return fraudEventKeyPrefix + cardID.String() + ":events"
}

func (s *RedisEventStore) Append(ctx context.Context, event *models.FraudEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	member, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal fraud event: %w", err)
	}

	key := cardKey(event.CardID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(event.EventTime.UnixMicro()), Member: member})
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append fraud event: %w", err)
	}
	return nil
}

func (s *RedisEventStore) CountSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	count, err := s.client.ZCount(ctx, cardKey(cardID), strconv.FormatInt(since.UnixMicro(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count fraud events: %w", err)
	}
	return count, nil
}
