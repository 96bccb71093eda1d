package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	redisclient "github.com/foodsearch/storefront/pkg/redis"
)

// Tokens is the credential pair handed out by the auth backend.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenSlot persists the credential pair across restarts. Like the cart
// snapshot, it is a single fixed-name slot written wholesale.
type TokenSlot interface {
	Load(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Erase(ctx context.Context) error
}

// RedisTokenSlot keeps the serialized tokens in a redis slot.
type RedisTokenSlot struct {
	client *redisclient.Client
	key    string
}

// NewRedisTokenSlot wires the token slot onto the shared redis client.
func NewRedisTokenSlot(client *redisclient.Client) (*RedisTokenSlot, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisTokenSlot{client: client, key: client.AuthTokensKey()}, nil
}

func (r *RedisTokenSlot) Load(ctx context.Context) (*Tokens, error) {
	raw, err := r.client.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "read stored tokens")
	}
	var tokens Tokens
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "parse stored tokens")
	}
	return &tokens, nil
}

func (r *RedisTokenSlot) Save(ctx context.Context, tokens Tokens) error {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, string(payload), 0)
}

func (r *RedisTokenSlot) Erase(ctx context.Context) error {
	return r.client.Del(ctx, r.key)
}

// MemoryTokenSlot is an in-process slot for tests and redis-less runs.
type MemoryTokenSlot struct {
	mu     sync.Mutex
	tokens *Tokens
}

// NewMemoryTokenSlot returns an empty in-memory slot.
func NewMemoryTokenSlot() *MemoryTokenSlot {
	return &MemoryTokenSlot{}
}

func (m *MemoryTokenSlot) Load(context.Context) (*Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return nil, nil
	}
	copied := *m.tokens
	return &copied, nil
}

func (m *MemoryTokenSlot) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	m.tokens = &tokens
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenSlot) Erase(context.Context) error {
	m.mu.Lock()
	m.tokens = nil
	m.mu.Unlock()
	return nil
}
