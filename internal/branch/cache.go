package branch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/previewline/internal/metrics"
)

const (
	DefaultCacheTimeout  = 5 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

type cacheEntry struct {
	nodeType    string
	branches    []Branch
	fingerprint string
	storedAt    time.Time
}

// Cache memoizes extracted branches per node id. An entry is served only
// while its fingerprint and node type match the request and it is younger
// than the timeout. A background goroutine evicts expired entries.
type Cache struct {
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
	registry *Registry

	mu      sync.Mutex
	entries map[string]*cacheEntry

	sweepMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTimeout sets the entry lifetime. Non-positive values keep the default.
func WithTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSweepInterval sets the background sweep period. A negative value
// disables the sweep goroutine.
func WithSweepInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d != 0 {
			c.interval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRegistry replaces the default extractor registry.
func WithRegistry(r *Registry) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.registry = r
		}
	}
}

// NewCache creates a Cache and starts its sweep goroutine.
// Call Stop to release it.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		timeout:  DefaultCacheTimeout,
		interval: DefaultSweepInterval,
		now:      time.Now,
		log:      slog.Default(),
		entries:  make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewDefaultRegistry(c.log)
	}
	c.Start()
	return c
}

// Branching reports whether nodeType has branches derived by this cache.
func (c *Cache) Branching(nodeType string) bool {
	return c.registry.Branching(nodeType)
}

// Get returns the required branches for a node, extracting them again when
// the configuration changed, the entry expired or forceRefresh is set.
func (c *Cache) Get(nodeID, nodeType string, cfg map[string]interface{}, forceRefresh bool) []Branch {
	fp := Fingerprint(cfg)
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[nodeID]
	if ok && !forceRefresh && e.fingerprint == fp && e.nodeType == nodeType && now.Sub(e.storedAt) < c.timeout {
		out := clone(e.branches)
		c.mu.Unlock()
		metrics.BranchCacheLookups.WithLabelValues("hit").Inc()
		return out
	}
	c.mu.Unlock()
	metrics.BranchCacheLookups.WithLabelValues("miss").Inc()

	branches := c.registry.Extract(nodeType, cfg)

	c.mu.Lock()
	c.entries[nodeID] = &cacheEntry{
		nodeType:    nodeType,
		branches:    branches,
		fingerprint: fp,
		storedAt:    now,
	}
	c.mu.Unlock()

	c.log.Debug("branches extracted", "node_id", nodeID, "node_type", nodeType, "count", len(branches))
	return clone(branches)
}

// Clear evicts the entry of one node.
func (c *Cache) Clear(nodeID string) {
	c.mu.Lock()
	delete(c.entries, nodeID)
	c.mu.Unlock()
}

// Reset evicts every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.storedAt) >= c.timeout {
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()
	if removed > 0 {
		metrics.BranchCacheEvictions.Add(float64(removed))
		c.log.Debug("branch cache swept", "removed", removed)
	}
	return removed
}

// Start launches the sweep goroutine. It is a no-op when the sweep is
// already running or disabled.
func (c *Cache) Start() {
	if c.interval <= 0 {
		return
	}
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stop != nil {
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	c.stop, c.done = stop, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine and waits for it to exit. Safe to call
// more than once; Start may be called again afterwards.
func (c *Cache) Stop() {
	c.sweepMu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.sweepMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func clone(b []Branch) []Branch {
	if b == nil {
		return nil
	}
	out := make([]Branch, len(b))
	copy(out, b)
	return out
}
