package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const versionSuffix = ":version"

// setIfNotOlder writes KEYS[1] and records ARGV[2] as its version in KEYS[2],
// unless a higher version is already recorded. ARGV[3] and ARGV[4] are the
// value and version TTLs in milliseconds; 0 means no expiry.
var setIfNotOlder = goredis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[4])
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// ViewCache stores JSON projections of type T under a key prefix. A zero TTL
// keeps keys until they are overwritten or deleted.
type ViewCache[T any] struct {
	client    *goredis.Client
	prefix    string
	ttl       time.Duration
	versionOf func(*T) int64
}

func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

// NewVersionedViewCache returns a cache whose Set never replaces an entry
// with a lower version. The version record outlives the value, so a late
// stale write cannot refill an expired entry either.
func NewVersionedViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration, versionOf func(*T) int64) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, versionOf: versionOf}
}

// Get returns (nil, false) on a miss, a Redis error or an undecodable value.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		if err != goredis.Nil {
			slog.Warn("view cache read failed", "key", c.prefix+id, "error", err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("view cache decode failed", "key", c.prefix+id, "error", err)
		return nil, false
	}
	return &v, true
}

// Set never fails the caller; a lost cache write only costs a later miss.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	key := c.prefix + id
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("view cache encode failed", "key", key, "error", err)
		return
	}

	if c.versionOf == nil {
		err = c.client.Set(ctx, key, data, c.ttl).Err()
	} else {
		err = setIfNotOlder.Run(ctx, c.client, []string{key, key + versionSuffix},
			data,
			strconv.FormatInt(c.versionOf(value), 10),
			c.ttl.Milliseconds(),
			(10 * c.ttl).Milliseconds(),
		).Err()
	}
	if err != nil {
		slog.Warn("view cache write failed", "key", key, "error", err)
	}
}

// Delete drops the value. A version record is kept so older writers stay
// rejected.
func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.prefix+id).Err(); err != nil {
		slog.Warn("view cache delete failed", "key", c.prefix+id, "error", err)
	}
}
