package geocache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Option configures a Cache.
type Option func(*Cache)

// WithCheckpointEvery flushes pending entries to the store after every n new
// entries. Zero disables checkpoints; the caller must Flush at the end.
func WithCheckpointEvery(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.checkpointEvery = n
		}
	}
}

// WithRunID stamps entries written through Put with id.
func WithRunID(id string) Option {
	return func(c *Cache) { c.runID = id }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is the in-memory view of a Store. It is safe for concurrent use; all
// mutation goes through a single mutex.
type Cache struct {
	store           Store
	checkpointEvery int
	runID           string
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	pending map[string]struct{}
}

// New returns an empty cache over store. Call Load before use to pick up
// persisted entries.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		now:     time.Now,
		entries: make(map[string]Entry),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates a cache over store and loads it.
func Open(ctx context.Context, store Store, opts ...Option) (*Cache, error) {
	c := New(store, opts...)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Load replaces the in-memory content with the store's. Pending entries that
// were never flushed are kept and win over stored ones.
func (c *Cache) Load(ctx context.Context) error {
	stored, err := c.store.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "geocache: load")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for addr := range c.pending {
		stored[addr] = c.entries[addr]
	}
	c.entries = stored

	zap.L().Debug("geocache: loaded", zap.Int("entries", len(stored)))
	return nil
}

// Get returns the entry for the exact address string.
func (c *Cache) Get(address string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[address]
	return e, ok
}

// Put records an outcome. When the number of unflushed entries reaches the
// checkpoint interval the cache is flushed; a flush error is returned but the
// entry stays in memory and pending.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = c.now().UTC()
	}
	if e.RunID == "" {
		e.RunID = c.runID
	}

	c.mu.Lock()
	c.entries[e.Address] = e
	c.pending[e.Address] = struct{}{}
	due := c.checkpointEvery > 0 && len(c.pending) >= c.checkpointEvery
	c.mu.Unlock()

	if !due {
		return nil
	}
	return eris.Wrap(c.Flush(ctx), "geocache: checkpoint")
}

// PutMatched stores coordinates for address.
func (c *Cache) PutMatched(ctx context.Context, address string, lat, lon float64, source string) error {
	return c.Put(ctx, Entry{Address: address, Status: StatusMatched, Latitude: lat, Longitude: lon, Source: source})
}

// PutNoResult stores the no-result marker for address.
func (c *Cache) PutNoResult(ctx context.Context, address, source string) error {
	return c.Put(ctx, Entry{Address: address, Status: StatusNoResult, Source: source})
}

// Flush writes pending entries to the store. On failure they stay pending so
// a later Flush retries them.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := make([]Entry, 0, len(c.pending))
	for addr := range c.pending {
		batch = append(batch, c.entries[addr])
	}
	c.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Address < batch[j].Address })
	if err := c.store.Upsert(ctx, batch); err != nil {
		return eris.Wrapf(err, "geocache: flush %d entries", len(batch))
	}

	c.mu.Lock()
	for _, e := range batch {
		// A concurrent Put may have replaced the entry after the snapshot.
		if cur, ok := c.entries[e.Address]; ok && cur == e {
			delete(c.pending, e.Address)
		}
	}
	c.mu.Unlock()

	zap.L().Debug("geocache: flushed", zap.Int("entries", len(batch)))
	return nil
}

// Evict removes addresses from memory and from the store so the next run
// queries the provider again. It returns how many were present in memory.
func (c *Cache) Evict(ctx context.Context, addresses ...string) (int, error) {
	if len(addresses) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	n := 0
	for _, a := range addresses {
		if _, ok := c.entries[a]; ok {
			n++
		}
		delete(c.entries, a)
		delete(c.pending, a)
	}
	c.mu.Unlock()

	if err := c.store.Delete(ctx, addresses); err != nil {
		return n, eris.Wrap(err, "geocache: evict")
	}
	return n, nil
}

// Len returns the number of entries in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats counts entries by status.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.entries), Pending: len(c.pending)}
	for _, e := range c.entries {
		switch e.Status {
		case StatusMatched:
			s.Matched++
		case StatusNoResult:
			s.NoResult++
		}
	}
	return s
}

// Close flushes pending entries and closes the store. The store is closed
// even when the flush fails.
func (c *Cache) Close(ctx context.Context) error {
	flushErr := c.Flush(ctx)
	if err := c.store.Close(); err != nil && flushErr == nil {
		return eris.Wrap(err, "geocache: close store")
	}
	return flushErr
}
