// Package pagecache implements the bounded, MRU-ordered node cache that
// sits between the B-tree and BlockIO. It is deliberately generic over
// any decoded Page so the same eviction/write-back policy can back a
// page type without depending on the B-tree package.
//
// hashicorp/golang-lru was considered for this role but its Get returns
// values by copy/pointer with no slot-aliasing contract and no
// eviction-time write-back hook, so it can't express "return the live
// slot, and flush it if dirty before reusing the slot for something
// else" -- the exact rule this cache exists to enforce. Hand-rolling a
// small linear-scan array was the only way to keep that contract
// explicit (see the aliasing note on Cache.Get).
package pagecache

// Page is anything the cache can hold: something identified by a page
// offset with a dirty bit the cache can inspect and clear.
type Page interface {
	Offset() uint32
	Dirty() bool
	ClearDirty()
}

// LoadFunc decodes the page at offset from its backing store.
type LoadFunc func(offset uint32) (Page, error)

// FlushFunc writes a dirty page back to its backing store.
type FlushFunc func(Page) error

// Cache holds up to capacity decoded pages, most-recently-used first.
//
// Aliasing rule: the Page returned by Get is only valid until the next
// call to Get or Evict on this Cache -- a subsequent call may evict the
// slot backing it (flushing it first if dirty) and reuse the storage.
// Callers must never hold two Page handles across an intervening Get;
// re-fetch by offset instead.
type Cache struct {
	slots    []Page // index 0 = most recently used
	capacity int
	load     LoadFunc
	flush    FlushFunc
}

// New creates a cache bounded to capacity slots (a capacity below 1 is
// raised to 1). load
// decodes a page from the backing store by offset; flush
// writes a dirty page back.
func New(capacity int, load LoadFunc, flush FlushFunc) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		slots:    make([]Page, 0, capacity),
		capacity: capacity,
		load:     load,
		flush:    flush,
	}
}

// Get returns the page at offset, loading it from the backing store on
// a miss. Passing offset 0 always misses and reserves a fresh slot
// without loading anything -- the allocator that asked for it is
// expected to immediately call ReplaceFront with the page it decided to
// install there.
func (c *Cache) Get(offset uint32) (Page, error) {
	if offset != 0 {
		for i, p := range c.slots {
			if p != nil && p.Offset() == offset {
				c.bubbleToFront(i)
				return c.slots[0], nil
			}
		}
	}

	var p Page
	var err error
	if offset != 0 {
		p, err = c.load(offset)
		if err != nil {
			return nil, err
		}
	}

	if err := c.reserveFront(); err != nil {
		return nil, err
	}
	c.slots[0] = p
	return p, nil
}

// ReplaceFront installs page into the most-recently-used slot, which
// must have just been reserved by a Get(0) call. Used by the node
// allocator once it knows the real offset and content of a new page.
func (c *Cache) ReplaceFront(page Page) {
	if len(c.slots) == 0 {
		c.slots = append(c.slots, page)
		return
	}
	c.slots[0] = page
}

// Evict drops the slot for offset, if cached, without writing it back
// even if dirty -- used when a node is being freed and its disk bytes
// are about to be overwritten with a free-list pointer out from under
// the cache.
func (c *Cache) Evict(offset uint32) {
	for i, p := range c.slots {
		if p != nil && p.Offset() == offset {
			c.slots = append(c.slots[:i], c.slots[i+1:]...)
			return
		}
	}
}

// Flush writes back every dirty slot, in LRU-to-MRU order, and clears
// their dirty bits. Used on Close.
func (c *Cache) Flush() error {
	for i := len(c.slots) - 1; i >= 0; i-- {
		p := c.slots[i]
		if p != nil && p.Dirty() {
			if err := c.flush(p); err != nil {
				return err
			}
			p.ClearDirty()
		}
	}
	return nil
}

// bubbleToFront moves slots[i] to the front, preserving the relative
// order of everything else (a single rotate, not a full sort).
func (c *Cache) bubbleToFront(i int) {
	if i == 0 {
		return
	}
	p := c.slots[i]
	copy(c.slots[1:i+1], c.slots[0:i])
	c.slots[0] = p
}

// reserveFront makes room at the front of the slot list: if the cache
// isn't yet at capacity, a new slot is grown; otherwise the
// least-recently-used slot is evicted (flushing it first if dirty) and
// reused.
func (c *Cache) reserveFront() error {
	if len(c.slots) < c.capacity {
		c.slots = append(c.slots, nil)
		copy(c.slots[1:], c.slots[:len(c.slots)-1])
		c.slots[0] = nil
		return nil
	}
	lru := c.slots[len(c.slots)-1]
	if lru != nil && lru.Dirty() {
		if err := c.flush(lru); err != nil {
			return err
		}
		lru.ClearDirty()
	}
	copy(c.slots[1:], c.slots[:len(c.slots)-1])
	c.slots[0] = nil
	return nil
}
