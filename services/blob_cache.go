package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// CachedStore keeps recently read blobs in memory in front of another
// BlobStore. Keys are never rewritten in place, so entries only leave on
// Delete, expiry or eviction.
type CachedStore struct {
	BlobStore

	group    singleflight.Group
	mu       sync.RWMutex
	items    map[string]*cacheItem
	maxItems int
	ttl      time.Duration
}

// NewCachedStore wraps store. The cleanup loop stops when ctx is done.
func NewCachedStore(ctx context.Context, store BlobStore, maxItems int, ttl time.Duration) *CachedStore {
	if maxItems <= 0 {
		maxItems = 64
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &CachedStore{
		BlobStore: store,
		items:     make(map[string]*cacheItem),
		maxItems:  maxItems,
		ttl:       ttl,
	}
	go c.cleanupLoop(ctx)
	return c
}

func (c *CachedStore) Read(key string) ([]byte, error) {
	if data, ok := c.get(key); ok {
		return data, nil
	}
	// concurrent misses on one key share a single backing read
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := c.BlobStore.Read(key)
		if err != nil {
			return nil, err
		}
		c.set(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *CachedStore) Delete(key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return c.BlobStore.Delete(key)
}

// Len reports the number of cached entries, expired ones included.
func (c *CachedStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *CachedStore) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.data, true
}

func (c *CachedStore) set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxItems {
		c.evictOldest()
	}
	c.items[key] = &cacheItem{data: data, expiresAt: time.Now().Add(c.ttl)}
}

func (c *CachedStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *CachedStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *CachedStore) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}
