package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrIdempotencyInFlight = errors.New("request with this idempotency key is in progress")

// IdempotentResponse is the stored outcome of a completed request.
type IdempotentResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// IdempotencyStore remembers create-appointment responses by Idempotency-Key.
type IdempotencyStore struct {
	redis  redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewIdempotencyStore(rdb redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{redis: rdb, ttl: ttl, prefix: "clinic:idem:"}
}

const inFlightMarker = "pending"

// Begin claims key. It returns the stored response when the key already completed,
// and ErrIdempotencyInFlight while another request holds it.
func (s *IdempotencyStore) Begin(ctx context.Context, scope, key string) (*IdempotentResponse, error) {
	k := s.prefix + scope + ":" + key
	ok, err := s.redis.SetNX(ctx, k, inFlightMarker, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	raw, err := s.redis.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrIdempotencyInFlight
	}
	if err != nil {
		return nil, err
	}
	if string(raw) == inFlightMarker {
		return nil, ErrIdempotencyInFlight
	}
	var resp IdempotentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, resp IdempotentResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.prefix+scope+":"+key, data, s.ttl).Err()
}

// Release drops the claim so a failed request can be retried with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.redis.Del(ctx, s.prefix+scope+":"+key).Err()
}
