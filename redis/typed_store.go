package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TypedStore stores values of C as JSON documents under prefix:key.
type TypedStore[C any] struct {
	client    *Client
	keyPrefix string
}

// NewTypedStore creates a TypedStore backed by client. Keys are prefixed
// with keyPrefix and a colon unless keyPrefix is empty.
func NewTypedStore[C any](client *Client, keyPrefix string) *TypedStore[C] {
	return &TypedStore[C]{client: client, keyPrefix: keyPrefix}
}

// Key returns the full Redis key for key.
func (s *TypedStore[C]) Key(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Load decodes the value at key. A missing key returns (nil, nil).
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	raw, err := s.client.Get(ctx, s.Key(key))
	if err != nil {
		if errors.Is(err, Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}
	return decode[C](key, raw)
}

// LoadMany decodes the values at keys in order, skipping missing ones.
func (s *TypedStore[C]) LoadMany(ctx context.Context, keys []string) ([]C, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.Key(k)
	}
	raws, err := s.client.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("typed store mget: %w", err)
	}
	out := make([]C, 0, len(raws))
	for i, r := range raws {
		str, ok := r.(string)
		if !ok {
			continue
		}
		v, err := decode[C](keys[i], str)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Save encodes val and stores it with ttl; 0 means no expiration.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.Key(key), data, ttl); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}

// Create stores val only when key is absent and reports whether it did.
func (s *TypedStore[C]) Create(ctx context.Context, key string, val *C) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	ok, err := s.client.SetNX(ctx, s.Key(key), data, 0)
	if err != nil {
		return false, fmt.Errorf("typed store create %q: %w", key, err)
	}
	return ok, nil
}

// Exists reports whether key is present.
func (s *TypedStore[C]) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.Key(key))
	if err != nil {
		return false, fmt.Errorf("typed store exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes key.
func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.Key(key)); err != nil {
		return fmt.Errorf("typed store delete %q: %w", key, err)
	}
	return nil
}

func decode[C any](key, raw string) (*C, error) {
	var val C
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return nil, fmt.Errorf("typed store unmarshal %q: %w", key, err)
	}
	return &val, nil
}
