// Package idempotency remembers checkout responses by client-supplied key so a
// retried submission does not create a second order.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request with the same key has not finished yet.
var ErrInFlight = errors.New("a request with this idempotency key is in progress")

const pending = "pending"

// Response is a stored HTTP response.
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type Store interface {
	// Begin claims key. It returns the stored response when the key was
	// already completed, ErrInFlight while it is claimed, and nil, nil when
	// the caller now owns the key.
	Begin(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, res Response) error
	// Abort releases a claim so the request can be retried.
	Abort(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore namespaces keys as "<prefix>:idempotency:<key>"; prefix is a
// bare service name such as "storefront".
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:idempotency:%s", s.prefix, k)
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*Response, error) {
	claimed, err := s.client.SetNX(ctx, s.key(key), pending, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		// expired between the two calls; try once more
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if raw == pending {
		return nil, ErrInFlight
	}
	var res Response
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, res Response) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), raw, s.ttl).Err()
}

func (s *RedisStore) Abort(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

type entry struct {
	res     *Response
	expires time.Time
}

// MemoryStore is a process-local Store for tests and the demo server.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Begin(_ context.Context, key string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.res == nil {
			return nil, ErrInFlight
		}
		res := *e.res
		return &res, nil
	}
	s.entries[key] = entry{expires: now.Add(s.ttl)}
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, res Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{res: &res, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
