package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

// sqliteMagic starts every SQLite database file
var sqliteMagic = []byte("SQLite format 3\x00")

// CatalogCache keeps recently loaded subsets keyed by the digest of their bytes.
// Concurrent requests for the same subset share a single load.
type CatalogCache struct {
	entries *lru.Cache[string, *catalog.Catalog]
	group   singleflight.Group
	metrics *Metrics
	logger  *zap.Logger
}

// NewCatalogCache creates a cache holding at most size catalogs
func NewCatalogCache(size int, metrics *Metrics, logger *zap.Logger) (*CatalogCache, error) {
	entries, err := lru.New[string, *catalog.Catalog](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{entries: entries, metrics: metrics, logger: logger}, nil
}

// Digest returns the cache key of a subset body
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Len returns the number of cached catalogs
func (c *CatalogCache) Len() int {
	return c.entries.Len()
}

// Get returns the catalog of body, loading it on a miss
func (c *CatalogCache) Get(ctx context.Context, body []byte) (*catalog.Catalog, error) {
	key := Digest(body)
	if cat, ok := c.entries.Get(key); ok {
		if c.metrics != nil {
			c.metrics.cacheHits.Inc()
		}
		return cat, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cat, ok := c.entries.Get(key); ok {
			return cat, nil
		}
		if c.metrics != nil {
			c.metrics.cacheMisses.Inc()
		}
		cat, err := c.load(ctx, key, body)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, cat)
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Catalog), nil
}

// load spills body to a temporary file named after its detected format and reads it back
// through the regular loader
func (c *CatalogCache) load(ctx context.Context, key string, body []byte) (*catalog.Catalog, error) {
	dir, err := os.MkdirTemp("", "otltemplate-subset-")
	if err != nil {
		return nil, fmt.Errorf("failed to create subset directory: %w", err)
	}
	defer os.RemoveAll(dir)

	name := key[:16] + ".yaml"
	if bytes.HasPrefix(body, sqliteMagic) {
		name = key[:16] + ".db"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write subset: %w", err)
	}

	cat, err := catalog.Load(ctx, path, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("subset cached", zap.String("digest", key), zap.Int("classes", len(cat.URIs())))
	return cat, nil
}
