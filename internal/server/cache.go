package server

import (
	"context"
	"sync"
	"time"

	"github.com/angelstreet/navtree/internal/model"
)

// cacheEntry holds a cached tree with its timestamp.
type cacheEntry struct {
	tree      model.Tree
	timestamp time.Time
}

// TreeCache provides a TTL-based cache of loaded trees keyed by tree id.
// Cached trees are shared between readers and must not be modified.
//
// Every invalidation bumps a generation; a load that started before an
// invalidation is returned to its caller but never stored.
type TreeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	epoch   uint64
	ttl     time.Duration
	now     func() time.Time
}

type generation struct {
	epoch, tree uint64
}

func (c *TreeCache) generation(treeID string) generation {
	return generation{epoch: c.epoch, tree: c.gens[treeID]}
}

// NewTreeCache creates a new cache. A ttl of 0 disables caching.
func NewTreeCache(ttl time.Duration) *TreeCache {
	return &TreeCache{
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Tree returns the cached tree if within TTL, otherwise loads it fresh.
func (c *TreeCache) Tree(ctx context.Context, treeID string, load func(context.Context, string) (model.Tree, error)) (model.Tree, error) {
	if c.ttl == 0 {
		return load(ctx, treeID)
	}

	c.mu.Lock()
	if entry, ok := c.entries[treeID]; ok && c.now().Sub(entry.timestamp) < c.ttl {
		tree := entry.tree
		c.mu.Unlock()
		return tree, nil
	}
	gen := c.generation(treeID)
	c.mu.Unlock()

	tree, err := load(ctx, treeID)
	if err != nil {
		return model.Tree{}, err
	}

	c.mu.Lock()
	if c.generation(treeID) == gen {
		c.entries[treeID] = cacheEntry{tree: tree, timestamp: c.now()}
	}
	c.mu.Unlock()

	return tree, nil
}

// Invalidate removes the entry for treeID.
func (c *TreeCache) Invalidate(treeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, treeID)
	c.gens[treeID]++
}

// InvalidateAll clears the entire cache.
func (c *TreeCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.epoch++
}
