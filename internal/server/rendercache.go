package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ErrRenderMiss is returned by a RenderStore that holds no entry for a key
var ErrRenderMiss = errors.New("render cache miss")

// RenderStore keeps rendered template responses. Only seeded requests are stored, since
// their output is fully determined by the subset and the query.
type RenderStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RenderKey derives the store key of a request from the subset digest and its query.
// Parameter order does not matter.
func RenderKey(digest string, query url.Values) string {
	var parts []string
	for key, values := range query {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		for _, v := range sorted {
			parts = append(parts, key+"="+v)
		}
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(digest + "?" + strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

// MemoryStore is an in-process RenderStore with LRU eviction and a TTL
type MemoryStore struct {
	entries *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a store holding at most size responses for ttl each
func NewMemoryStore(size int, ttl time.Duration) (*MemoryStore, error) {
	if size <= 0 {
		return nil, fmt.Errorf("render cache size must be > 0, got %d", size)
	}
	return &MemoryStore{entries: expirable.NewLRU[string, []byte](size, nil, ttl)}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.entries.Get(key); ok {
		return v, nil
	}
	return nil, ErrRenderMiss
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.entries.Add(key, value)
	return nil
}

// RedisConfig holds Redis connection settings for a shared render cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to all keys
	Prefix string
	TTL    time.Duration
}

// RedisStore is a RenderStore shared between API instances through Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", config.Addr, err)
	}
	return NewRedisStoreWithClient(client, config.Prefix, config.TTL), nil
}

// NewRedisStoreWithClient creates a store on an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "otltemplate:render:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRenderMiss
		}
		return nil, err
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
