package tilehttp

import (
	"container/list"
	"context"
	"image"
	"sync"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
)

// CachedFetcher keeps recently decoded textures in memory so that a grid
// rebuild after a short walk does not download the overlapping tiles
// again. Entries expire after ttl; the least recently used entry is
// evicted beyond capacity.
type CachedFetcher struct {
	next ports.TileFetcher
	now  func() time.Time

	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[domain.TileIndex]*list.Element
}

type entry struct {
	k   domain.TileIndex
	v   image.Image
	exp time.Time
}

// NewCachedFetcher wraps next. A zero ttl or capacity disables caching.
func NewCachedFetcher(next ports.TileFetcher, capacity int, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next: next,
		now:  time.Now,
		cap:  capacity,
		ttl:  ttl,
		lst:  list.New(),
		dict: make(map[domain.TileIndex]*list.Element),
	}
}

// Fetch implements ports.TileFetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, tile domain.TileIndex) (image.Image, error) {
	if img, ok := c.get(tile); ok {
		return img, nil
	}
	img, err := c.next.Fetch(ctx, tile)
	if err != nil {
		return nil, err
	}
	c.set(tile, img)
	return img, nil
}

// Len returns the number of cached textures, expired ones included.
func (c *CachedFetcher) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

func (c *CachedFetcher) get(k domain.TileIndex) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(entry)
		if c.now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return nil, false
}

func (c *CachedFetcher) set(k domain.TileIndex, v image.Image) {
	if c.cap <= 0 || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(c.ttl)
	if e, ok := c.dict[k]; ok {
		e.Value = entry{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(entry{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}
