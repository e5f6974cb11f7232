package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cartKeyPrefix  = "cart:" // cart:{uid}
	maxTxnAttempts = 5
)

// ErrContention is returned when a cart stays contended for every retry.
var ErrContention = errors.New("cart: too many concurrent modifications")

// Store persists one cart per user.
type Store interface {
	// Load returns the user's cart, or an empty cart when none is stored.
	Load(ctx context.Context, uid string) (*Cart, error)
	// Modify applies fn to the stored cart atomically and returns the result.
	// When fn returns an error nothing is written.
	Modify(ctx context.Context, uid string, fn func(*Cart) error) (*Cart, error)
	// Clear deletes the user's cart.
	Clear(ctx context.Context, uid string) error
}

// RedisStore keeps carts as JSON under cart:{uid} with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps carts forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(uid string) string {
	return cartKeyPrefix + uid
}

func (s *RedisStore) Load(ctx context.Context, uid string) (*Cart, error) {
	return s.read(ctx, s.client, uid)
}

func (s *RedisStore) read(ctx context.Context, cmd redis.Cmdable, uid string) (*Cart, error) {
	data, err := cmd.Get(ctx, s.key(uid)).Bytes()
	if err == redis.Nil {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &c, nil
}

// Modify runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the cart in between.
func (s *RedisStore) Modify(ctx context.Context, uid string, fn func(*Cart) error) (*Cart, error) {
	key := s.key(uid)
	var result *Cart

	txf := func(tx *redis.Tx) error {
		c, err := s.read(ctx, tx, uid)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if c.Len() == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = c
		return nil
	}

	for i := 0; i < maxTxnAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrContention
}

func (s *RedisStore) Clear(ctx context.Context, uid string) error {
	if err := s.client.Del(ctx, s.key(uid)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MemoryStore keeps carts in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Cart)}
}

func (s *MemoryStore) Load(_ context.Context, uid string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clone(s.carts[uid])
	return &c, nil
}

func (s *MemoryStore) Modify(_ context.Context, uid string, fn func(*Cart) error) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clone(s.carts[uid])
	if err := fn(&c); err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		delete(s.carts, uid)
	} else {
		s.carts[uid] = clone(c)
	}
	return &c, nil
}

func (s *MemoryStore) Clear(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, uid)
	return nil
}

func clone(c Cart) Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
