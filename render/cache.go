// ABOUTME: Layout cache for graphviz output, keyed by a graph's display revision and output format.
// ABOUTME: Concurrent misses for one key share a single layout; entries expire by TTL and are evicted least recently used.
package render

import (
	"container/list"
	"context"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"github.com/2389-research/conceptgraph/dot"
)

// RenderFunc renders DOT text to an output format.
type RenderFunc func(ctx context.Context, dotText string, format string) ([]byte, error)

// Layout is the rendered output for one display revision.
type Layout struct {
	Data []byte
	// ETag is a quoted blake3 digest of Data.
	ETag string
}

type layoutKey struct {
	rev    uint64
	format string
}

func (k layoutKey) String() string {
	return strconv.FormatUint(k.rev, 10) + ":" + k.format
}

type layoutEntry struct {
	key       layoutKey
	layout    Layout
	createdAt time.Time
}

// LayoutCache holds graphviz layouts per display revision. A revision names
// one abstract value, domain, and checkbox state, so a hit skips building and
// serializing the display graph as well as the layout itself.
type LayoutCache struct {
	layout   RenderFunc
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[layoutKey]*list.Element
	lru     *list.List
	flight  singleflight.Group
}

// NewLayoutCache wraps layout. Entries expire after ttl; past capacity
// entries the least recently used is evicted. A capacity of zero is unbounded.
func NewLayoutCache(layout RenderFunc, ttl time.Duration, capacity int) *LayoutCache {
	return &LayoutCache{
		layout:   layout,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[layoutKey]*list.Element),
		lru:      list.New(),
	}
}

// Layout returns the layout of revision rev in format. build is called for
// the display graph only on a miss. Errors are never cached.
func (c *LayoutCache) Layout(ctx context.Context, rev uint64, format string, build func() (*dot.Graph, error)) (Layout, error) {
	key := layoutKey{rev: rev, format: format}
	if l, ok := c.lookup(key); ok {
		return l, nil
	}

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		if l, ok := c.lookup(key); ok {
			return l, nil
		}
		g, err := build()
		if err != nil {
			return nil, err
		}
		data, err := c.layout(ctx, dot.Serialize(g), format)
		if err != nil {
			return nil, err
		}
		sum := blake3.Sum256(data)
		l := Layout{Data: data, ETag: `"` + hex.EncodeToString(sum[:16]) + `"`}
		c.store(key, l)
		return l, nil
	})
	if err != nil {
		return Layout{}, err
	}
	return v.(Layout), nil
}

// Len returns the number of entries, expired ones included.
func (c *LayoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LayoutCache) lookup(key layoutKey) (Layout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return Layout{}, false
	}
	e := el.Value.(*layoutEntry)
	if time.Since(e.createdAt) >= c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		return Layout{}, false
	}
	c.lru.MoveToFront(el)
	return e.layout, true
}

func (c *LayoutCache) store(key layoutKey, l Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = &layoutEntry{key: key, layout: l, createdAt: time.Now()}
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&layoutEntry{key: key, layout: l, createdAt: time.Now()})
	for c.capacity > 0 && c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*layoutEntry).key)
	}
}
