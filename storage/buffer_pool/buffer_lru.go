// Package buffer_pool bounds how many decoded index pages stay in
// memory. Every page is written through to disk before it enters the
// cache, so eviction never loses data.
package buffer_pool

import (
	"container/list"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zhukovaskychina/xtabledb/storage/pages"
)

var KeyNotFoundError = errors.New("Key not found.")

type LRUCache interface {
	statsAccessor

	//lru 中设置pageNo对应的节点页
	Set(pageNo uint32, value *pages.IndexPage) error

	Get(pageNo uint32) (*pages.IndexPage, error)

	Remove(pageNo uint32) bool

	// Purge removes all key-value pairs from the cache.
	Purge()

	// Has returns true if the key exists in the cache.
	Has(pageNo uint32) bool

	Len() uint32
}

type statsAccessor interface {
	HitCount() uint64
	MissCount() uint64
	LookupCount() uint64
	HitRate() float64
}

// statistics
type stats struct {
	hitCount  uint64
	missCount uint64
}

// increment hit count
func (st *stats) IncrHitCount() uint64 {
	return atomic.AddUint64(&st.hitCount, 1)
}

// increment miss count
func (st *stats) IncrMissCount() uint64 {
	return atomic.AddUint64(&st.missCount, 1)
}

// HitCount returns hit count
func (st *stats) HitCount() uint64 {
	return atomic.LoadUint64(&st.hitCount)
}

// MissCount returns miss count
func (st *stats) MissCount() uint64 {
	return atomic.LoadUint64(&st.missCount)
}

// LookupCount returns lookup count
func (st *stats) LookupCount() uint64 {
	return st.HitCount() + st.MissCount()
}

// HitRate returns rate for cache hitting
func (st *stats) HitRate() float64 {
	hc, mc := st.HitCount(), st.MissCount()
	total := hc + mc
	if total == 0 {
		return 0.0
	}
	return float64(hc) / float64(total)
}

// Discards the least recently used items first. Both Get and Set count
// as a touch. Capacity 0 turns the cache into a pass-through where
// every lookup misses.
type LRUCacheImpl struct {
	size int
	mu   sync.RWMutex

	*stats
	items     map[uint32]*list.Element
	evictList *list.List
}

type lruItem struct {
	key   uint32
	value *pages.IndexPage
}

func NewLRUCacheImpl(size int) LRUCache {
	var lrucache = new(LRUCacheImpl)
	lrucache.size = size
	lrucache.stats = &stats{}
	lrucache.items = make(map[uint32]*list.Element, 0)
	lrucache.evictList = list.New()
	return lrucache
}

func (L *LRUCacheImpl) Set(pageNo uint32, value *pages.IndexPage) error {
	if L.size <= 0 {
		return nil
	}
	L.mu.Lock()
	defer L.mu.Unlock()

	var item *lruItem
	if it, ok := L.items[pageNo]; ok {
		L.evictList.MoveToFront(it)
		item = it.Value.(*lruItem)
		item.value = value
	} else {
		if L.evictList.Len() >= L.size {
			L.evict(1)
		}
		item = &lruItem{
			key:   pageNo,
			value: value,
		}
		L.items[pageNo] = L.evictList.PushFront(item)
	}
	return nil
}

func (L *LRUCacheImpl) Get(pageNo uint32) (*pages.IndexPage, error) {
	L.mu.Lock()
	item, ok := L.items[pageNo]
	if ok {
		it := item.Value.(*lruItem)
		L.evictList.MoveToFront(item)
		v := it.value
		L.mu.Unlock()
		L.stats.IncrHitCount()
		return v, nil
	}
	L.mu.Unlock()
	L.stats.IncrMissCount()
	return nil, KeyNotFoundError
}

func (L *LRUCacheImpl) Remove(pageNo uint32) bool {
	L.mu.Lock()
	defer L.mu.Unlock()
	if ent, ok := L.items[pageNo]; ok {
		L.removeElement(ent)
		return true
	}
	return false
}

func (L *LRUCacheImpl) Purge() {
	L.mu.Lock()
	defer L.mu.Unlock()
	L.items = make(map[uint32]*list.Element, 0)
	L.evictList = list.New()
}

func (L *LRUCacheImpl) Has(pageNo uint32) bool {
	L.mu.RLock()
	defer L.mu.RUnlock()
	_, ok := L.items[pageNo]
	return ok
}

func (L *LRUCacheImpl) Len() uint32 {
	L.mu.RLock()
	defer L.mu.RUnlock()
	return uint32(L.evictList.Len())
}

// evict removes the oldest item from the cache.
func (L *LRUCacheImpl) evict(count int) {
	for i := 0; i < count; i++ {
		ent := L.evictList.Back()
		if ent == nil {
			return
		} else {
			L.removeElement(ent)
		}
	}
}

func (c *LRUCacheImpl) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	entry := e.Value.(*lruItem)
	delete(c.items, entry.key)
}
