// Package schemacache caches Schema Vault lookups. Fetching a schema is a
// rate-limited HTTP round trip and the same (provider, service, source,
// schema_type) tuple is looked up on every single message that pipeline
// processes, so this sits in front of schemavault.Client: an in-process LRU
// tier for the common case, and an optional Redis tier shared across worker
// replicas so a cold local cache doesn't mean a cold fleet.
package schemacache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Key identifies one cached schema lookup.
type Key struct {
	Provider   string
	Service    string
	Source     string
	SchemaType vaultmodel.SchemaType
}

func (k Key) redisKey() string {
	return fmt.Sprintf("schema:%s:%s:%s:%s", k.Provider, k.Service, k.Source, k.SchemaType)
}

// Fetcher is the upstream this cache falls back to on a miss — satisfied
// by schemavault.Client's ListSchemasByServiceSourceProviderAndSchemaType.
type Fetcher interface {
	ListSchemasByServiceSourceProviderAndSchemaType(ctx context.Context, provider, service, source string, schemaType vaultmodel.SchemaType) (vaultmodel.Schema, error)
}

type entry struct {
	key     Key
	schema  vaultmodel.Schema
	expires time.Time
}

// Cache is a two-tier cache: an in-process LRU of bounded size, backed
// optionally by a Redis client shared across replicas.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu       sync.Mutex
	capacity int
	items    map[Key]*list.Element
	order    *list.List // front = most recently used

	redis *redis.Client
}

// New builds a Cache. redisClient may be nil to disable the remote tier.
func New(fetcher Fetcher, capacity int, ttl time.Duration, redisClient *redis.Client) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
		redis:    redisClient,
	}
}

// Get returns the Schema for key, consulting the local LRU, then Redis,
// then the Schema Vault itself, populating each faster tier on the way
// back out.
func (c *Cache) Get(ctx context.Context, key Key) (vaultmodel.Schema, error) {
	if schema, ok := c.getLocal(key); ok {
		return schema, nil
	}

	if c.redis != nil {
		if schema, ok := c.getRedis(ctx, key); ok {
			c.putLocal(key, schema)
			return schema, nil
		}
	}

	schema, err := c.fetcher.ListSchemasByServiceSourceProviderAndSchemaType(ctx, key.Provider, key.Service, key.Source, key.SchemaType)
	if err != nil {
		return vaultmodel.Schema{}, fmt.Errorf("schemacache: fetching %+v: %w", key, err)
	}

	c.putLocal(key, schema)
	if c.redis != nil {
		c.putRedis(ctx, key, schema)
	}
	return schema, nil
}

func (c *Cache) getLocal(key Key) (vaultmodel.Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return vaultmodel.Schema{}, false
	}
	ent := el.Value.(*entry)
	if c.ttl > 0 && time.Now().After(ent.expires) {
		c.order.Remove(el)
		delete(c.items, key)
		return vaultmodel.Schema{}, false
	}
	c.order.MoveToFront(el)
	return ent.schema, true
}

func (c *Cache) putLocal(key Key, schema vaultmodel.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).schema = schema
		el.Value.(*entry).expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, schema: schema, expires: time.Now().Add(c.ttl)})
	c.items[key] = el

	for len(c.items) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

func (c *Cache) getRedis(ctx context.Context, key Key) (vaultmodel.Schema, bool) {
	raw, err := c.redis.Get(ctx, key.redisKey()).Bytes()
	if err != nil {
		return vaultmodel.Schema{}, false
	}
	var schema vaultmodel.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return vaultmodel.Schema{}, false
	}
	return schema, true
}

func (c *Cache) putRedis(ctx context.Context, key Key, schema vaultmodel.Schema) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key.redisKey(), encoded, c.ttl)
}
