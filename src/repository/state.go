package repository

import (
	"context"
	"sync"
	"time"

	cfg "catalogserv/src/configuration"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const stateKeyPrefix = "oauth:state:"

type (
	// StateStore remembers the anti-forgery state of provider logins until the
	// provider calls back. A state is valid exactly once.
	StateStore interface {
		Save(ctx context.Context, state string, ttl time.Duration) error
		Consume(ctx context.Context, state string) (bool, error)
	}

	RedisStateStore struct {
		client *redis.Client
	}

	InMemoryStateStore struct {
		mu    sync.Mutex
		table map[string]time.Time
		now   func() time.Time
	}
)

// NewStateStore picks redis when an address is configured and falls back to
// process memory otherwise.
func NewStateStore(ctx context.Context, config *cfg.Properties) (StateStore, error) {
	if config == nil {
		return nil, errors.New("NewStateStore: config is nil")
	}
	if config.Redis.Addr == "" {
		log.Warn("REDIS_ADDR is empty, oauth state is kept in memory")
		return NewInMemoryStateStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "NewStateStore: ping redis %s failed", config.Redis.Addr)
	}
	return NewRedisStateStore(client), nil
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (r *RedisStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := r.client.SetEX(ctx, stateKeyPrefix+state, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "RedisStateStore.Save failed")
	}
	return nil
}

func (r *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := r.client.GetDel(ctx, stateKeyPrefix+state).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "RedisStateStore.Consume failed")
	}
	return true, nil
}

func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		table: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (i *InMemoryStateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	for k, expires := range i.table {
		if !now.Before(expires) {
			delete(i.table, k)
		}
	}
	i.table[state] = now.Add(ttl)
	return nil
}

func (i *InMemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	expires, ok := i.table[state]
	if !ok {
		return false, nil
	}
	delete(i.table, state)
	return i.now().Before(expires), nil
}
