package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iksnae/chat-recorder/internal"
)

// DefaultCacheTTL bounds how long a resolved reference stays in redis
const DefaultCacheTTL = 24 * time.Hour

// CachedStore fronts a Store with redis so that hot sessions skip the
// upsert round trip. Cache failures are logged and never fail the call.
type CachedStore struct {
	store  Store
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewCachedStore wraps store; prefix namespaces the redis keys
func NewCachedStore(store Store, client redis.Cmdable, prefix string, ttl time.Duration) *CachedStore {
	if prefix == "" {
		prefix = "chatrecorder"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{store: store, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedStore) refKey(s Session) string {
	return c.prefix + ":session:" + strconv.FormatUint(xxhash.Sum64String(s.Key()), 16)
}

func (c *CachedStore) lookupKey(ref int64) string {
	return c.prefix + ":ref:" + strconv.FormatInt(ref, 10)
}

// ResolveOrCreate checks redis first. The cached value carries the full
// tuple key so that a hash collision reads as a miss.
func (c *CachedStore) ResolveOrCreate(ctx context.Context, s Session) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	key := c.refKey(s)
	canonical := s.Key()

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if ref, ok := decodeCachedRef(val, canonical); ok {
			return ref, nil
		}
	case !errors.Is(err, redis.Nil):
		internal.LogWarn("session cache get failed: %v", err)
	}

	ref, err := c.store.ResolveOrCreate(ctx, s)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, key, strconv.FormatInt(ref, 10)+"\x00"+canonical, c.ttl).Err(); err != nil {
		internal.LogWarn("session cache set failed: %v", err)
	}
	return ref, nil
}

// Lookup reads through redis to the wrapped store
func (c *CachedStore) Lookup(ctx context.Context, ref int64) (Session, error) {
	key := c.lookupKey(ref)
	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Session
		if jsonErr := json.Unmarshal(val, &s); jsonErr == nil {
			return s, nil
		}
	case !errors.Is(err, redis.Nil):
		internal.LogWarn("session cache get failed: %v", err)
	}

	s, err := c.store.Lookup(ctx, ref)
	if err != nil {
		return Session{}, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return s, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		internal.LogWarn("session cache set failed: %v", err)
	}
	return s, nil
}

func decodeCachedRef(val, canonical string) (int64, bool) {
	refPart, keyPart, ok := strings.Cut(val, "\x00")
	if !ok || keyPart != canonical {
		return 0, false
	}
	ref, err := strconv.ParseInt(refPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return ref, true
}

// String describes the cache for diagnostics
func (c *CachedStore) String() string {
	return fmt.Sprintf("redis session cache (prefix=%s ttl=%s)", c.prefix, c.ttl)
}
