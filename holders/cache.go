package holders

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// Cache maps a token address to its ranked holder addresses.
//
// Lifecycle: an entry is populated on first lookup and never re-queried or
// invalidated for the life of the Cache. Concurrent first lookups of the same
// token share a single query. A failed query is not cached.
type Cache struct {
	source  Source
	limit   int
	metrics *Metrics

	mu      sync.RWMutex
	entries map[common.Address][]common.Address
	group   singleflight.Group
}

// CacheConfig holds the configuration for a Cache.
type CacheConfig struct {
	Source             Source
	Limit              int
	PrometheusRegistry prometheus.Registerer
}

func (c *CacheConfig) validate() error {
	if c.Source == nil {
		return fmt.Errorf("config: Source is required")
	}
	if c.PrometheusRegistry == nil {
		return fmt.Errorf("config: PrometheusRegistry is required")
	}
	return nil
}

// NewCache creates an empty cache over source.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Cache{
		source:  cfg.Source,
		limit:   cfg.Limit,
		metrics: NewMetrics(cfg.PrometheusRegistry),
		entries: make(map[common.Address][]common.Address),
	}, nil
}

// Holders returns the ranked holders of token, querying the source only if
// the token has never been looked up successfully. The returned slice is a
// copy the caller may modify.
func (c *Cache) Holders(ctx context.Context, token common.Address) ([]common.Address, error) {
	if cached, ok := c.lookup(token); ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return cached, nil
	}

	// The shared query outlives any single caller's cancellation. Each caller
	// still stops waiting when its own ctx is done.
	queryCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(token.Hex(), func() (any, error) {
		// another caller may have populated the entry while we waited
		if cached, ok := c.lookup(token); ok {
			return cached, nil
		}
		c.metrics.queries.Inc()
		ranked, err := c.source.TopHolders(queryCtx, token, c.limit)
		if err != nil {
			c.metrics.queryErrors.Inc()
			return nil, fmt.Errorf("rank holders of %s: %w", token.Hex(), err)
		}
		addrs := make([]common.Address, len(ranked))
		for i, h := range ranked {
			addrs[i] = h.Address
		}
		c.mu.Lock()
		c.entries[token] = addrs
		c.mu.Unlock()
		return addrs, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	c.metrics.lookups.WithLabelValues("miss").Inc()

	addrs := res.Val.([]common.Address)
	out := make([]common.Address, len(addrs))
	copy(out, addrs)
	return out, nil
}

// Seed populates token's entry without querying the source. An existing
// entry is left untouched.
func (c *Cache) Seed(token common.Address, holders []common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[token]; ok {
		return
	}
	addrs := make([]common.Address, len(holders))
	copy(addrs, holders)
	c.entries[token] = addrs
}

// Len returns the number of populated entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(token common.Address) ([]common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addrs, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	out := make([]common.Address, len(addrs))
	copy(out, addrs)
	return out, true
}
