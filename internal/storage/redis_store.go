package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const clearBatchSize = 100

// RedisStore keeps values in Redis under "<namespace>:<key>".
type RedisStore struct {
	redis     *redis.Client
	namespace string
	ttl       time.Duration
	tracer    trace.Tracer
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a namespaced store. A zero ttl keeps values until
// they are overwritten or removed.
func NewRedisStore(client *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("storage: redis client cannot be nil")
	}
	return &RedisStore{
		redis:     client,
		namespace: namespace,
		ttl:       ttl,
		tracer:    otel.Tracer("barberia.internal.storage"),
	}
}

// RedisFactory scopes every session to its own namespace below prefix. The
// session id is query-escaped so it always forms a single namespace segment.
func RedisFactory(client *redis.Client, prefix string, ttl time.Duration) Factory {
	return func(sessionID string) Store {
		return NewRedisStore(client, fmt.Sprintf("%s:%s", prefix, url.QueryEscape(sessionID)), ttl)
	}
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, span := s.tracer.Start(ctx, "storage.set", trace.WithAttributes(attribute.String("storage.key", key)))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: failed to encode %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: failed to persist %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ctx, span := s.tracer.Start(ctx, "storage.get", trace.WithAttributes(attribute.String("storage.key", key)))
	defer span.End()

	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("storage: failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("storage: failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "storage.remove")
	defer span.End()

	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: failed to remove %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key in the store's namespace.
func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "storage.clear")
	defer span.End()

	pattern := "*"
	if s.namespace != "" {
		pattern = escapeGlob(s.namespace) + ":*"
	}
	iter := s.redis.Scan(ctx, 0, pattern, clearBatchSize).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= clearBatchSize {
			if err := s.redis.Del(ctx, batch...).Err(); err != nil {
				span.RecordError(err)
				return fmt.Errorf("storage: failed to clear %s: %w", s.namespace, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: failed to scan %s: %w", s.namespace, err)
	}
	if len(batch) > 0 {
		if err := s.redis.Del(ctx, batch...).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("storage: failed to clear %s: %w", s.namespace, err)
		}
	}
	return nil
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
