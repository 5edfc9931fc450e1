package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "skiros:"

// noExpiry is the index score of keys without TTL (2100-01-01).
const noExpiry = 4102444800

// WorldModel implements ports.WorldModel using Redis. Values are stored as
// JSON, so they come back as the types encoding/json produces.
type WorldModel struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a WorldModel.
type Option func(*WorldModel)

// WithTTL sets the expiration of every written key.
func WithTTL(ttl time.Duration) Option {
	return func(w *WorldModel) {
		w.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(w *WorldModel) {
		w.prefix = prefix
	}
}

// NewClient connects to a Redis server.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// New creates a world model on a new connection.
func New(address, password string, db int, opts ...Option) *WorldModel {
	return NewFromClient(NewClient(address, password, db), opts...)
}

// NewFromClient creates a world model on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *WorldModel {
	w := &WorldModel{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WorldModel) key(k string) string {
	return w.prefix + "wm:" + k
}

func (w *WorldModel) indexKey() string {
	return w.prefix + "wm:index"
}

// Get returns the value stored under key.
func (w *WorldModel) Get(ctx context.Context, key string) (any, error) {
	data, err := w.client.Get(ctx, w.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key and indexes it.
func (w *WorldModel) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	score := float64(noExpiry)
	if w.ttl > 0 {
		score = float64(time.Now().Add(w.ttl).Unix())
	}

	pipe := w.client.TxPipeline()
	pipe.Set(ctx, w.key(key), data, w.ttl)
	pipe.ZAdd(ctx, w.indexKey(), backend.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save %s to redis: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (w *WorldModel) Delete(ctx context.Context, key string) error {
	pipe := w.client.TxPipeline()
	pipe.Del(ctx, w.key(key))
	pipe.ZRem(ctx, w.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Keys returns the live keys in ascending order. Expired entries are
// pruned from the index first.
func (w *WorldModel) Keys(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := w.client.ZRemRangeByScore(ctx, w.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired keys: %w", err)
	}

	keys, err := w.client.ZRange(ctx, w.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client.
func (w *WorldModel) Close() error {
	return w.client.Close()
}
