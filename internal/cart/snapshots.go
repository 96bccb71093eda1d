package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	redisclient "github.com/foodsearch/storefront/pkg/redis"
)

type slotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisSnapshots keeps the serialized cart in a single redis slot.
type RedisSnapshots struct {
	store slotStore
	key   string
}

// NewRedisSnapshots wires the snapshot slot onto the shared redis client.
func NewRedisSnapshots(client *redisclient.Client) (*RedisSnapshots, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisSnapshots{store: client, key: client.CartSnapshotKey()}, nil
}

// Load reads the slot. A missing slot yields an empty cart; anything
// unreadable or unparsable is reported as corruption for the composition
// root to map to "start empty".
func (r *RedisSnapshots) Load(ctx context.Context) ([]LineItem, error) {
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "read cart snapshot")
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "parse cart snapshot")
	}
	return items, nil
}

// Save overwrites the slot wholesale.
func (r *RedisSnapshots) Save(ctx context.Context, items []LineItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.key, string(payload), 0)
}

// Erase deletes the slot.
func (r *RedisSnapshots) Erase(ctx context.Context) error {
	return r.store.Del(ctx, r.key)
}

// MemorySnapshots is an in-process slot used when no durable store is wired,
// and by tests across packages.
type MemorySnapshots struct {
	mu    sync.Mutex
	raw   []byte
	empty bool
}

// NewMemorySnapshots returns an empty in-memory slot.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{empty: true}
}

func (m *MemorySnapshots) Load(_ context.Context) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.empty {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(m.raw, &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "parse cart snapshot")
	}
	return items, nil
}

func (m *MemorySnapshots) Save(_ context.Context, items []LineItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.raw = payload
	m.empty = false
	m.mu.Unlock()
	return nil
}

func (m *MemorySnapshots) Erase(_ context.Context) error {
	m.mu.Lock()
	m.raw = nil
	m.empty = true
	m.mu.Unlock()
	return nil
}

// Corrupt overwrites the stored payload with garbage. Test hook.
func (m *MemorySnapshots) Corrupt() {
	m.mu.Lock()
	m.raw = []byte("{not json")
	m.empty = false
	m.mu.Unlock()
}
