package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler applies one event. A returned error leaves the entry pending so it
// is redelivered on the next start, unless it wraps ErrMalformed.
type Handler func(ctx context.Context, event Event) error

// ErrMalformed marks an entry that can never be applied. The subscriber
// acknowledges and drops it instead of redelivering.
var ErrMalformed = errors.New("malformed stream entry")

// SubscriberConfig describes one consumer of a stream within a group.
// Zero BatchSize and BlockDuration fall back to 10 entries and 5 seconds.
type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

// Subscriber consumes a Redis Stream through a consumer group.
type Subscriber struct {
	client *redis.Client
	cfg    SubscriberConfig
}

func NewSubscriber(client *redis.Client, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	return &Subscriber{client: client, cfg: cfg}
}

// Start blocks until ctx is cancelled. Entries this consumer received but
// never acknowledged before a restart are replayed first.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", s.cfg.Group, err)
	}

	log := slog.With("stream", s.cfg.Stream, "group", s.cfg.Group, "consumer", s.cfg.Consumer)
	log.Info("Subscriber started")

	// An explicit id walks this consumer's pending entries past that id;
	// ">" asks for new ones.
	cursor := "0"
	for {
		if ctx.Err() != nil {
			log.Info("Subscriber stopping")
			return ctx.Err()
		}

		lastID, err := s.poll(ctx, cursor)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error("Error reading stream", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		case cursor != ">" && lastID == "":
			cursor = ">"
		case cursor != ">":
			cursor = lastID
		}
	}
}

// poll reads one batch from cursor and returns the id of the last entry seen.
func (s *Subscriber) poll(ctx context.Context, cursor string) (string, error) {
	args := &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, cursor},
		Count:    s.cfg.BatchSize,
	}
	if cursor == ">" {
		args.Block = s.cfg.BlockDuration
	}

	streams, err := s.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from stream: %w", err)
	}

	lastID := ""
	for _, stream := range streams {
		for _, message := range stream.Messages {
			lastID = message.ID
			err := s.handle(ctx, message)
			if err != nil && !errors.Is(err, ErrMalformed) {
				slog.Error("Failed to process stream entry", "stream", s.cfg.Stream, "id", message.ID, "error", err)
				continue
			}
			if err != nil {
				// Redelivering an undecodable entry never succeeds.
				slog.Warn("Dropping stream entry", "stream", s.cfg.Stream, "id", message.ID, "error", err)
			}
			if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, message.ID).Err(); err != nil {
				slog.Error("Failed to ACK stream entry", "stream", s.cfg.Stream, "id", message.ID, "error", err)
			}
		}
	}
	return lastID, nil
}

func (s *Subscriber) handle(ctx context.Context, message redis.XMessage) error {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: no event field", ErrMalformed)
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s.cfg.Handler(ctx, event)
}
