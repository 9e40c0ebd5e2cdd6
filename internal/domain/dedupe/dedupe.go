// Package dedupe remembers slots already known to be stored so the ingestion
// loop can skip a storage round trip when the scheduler revisits them.
package dedupe

import (
	"sync"
	"sync/atomic"

	"github.com/okian/helio/internal/domain/slot"
)

// Memo records stored slots.
type Memo interface {
	// Seen reports whether s was recorded.
	Seen(s slot.Slot) bool
	// Record remembers s. It returns true if s was already present.
	Record(s slot.Slot) bool

	Size() int64
}

// node is one entry of the insertion list, newest at head.
type node struct {
	key  int64
	next *node
}

func (n *node) reset() {
	n.key = 0
	n.next = nil
}

// slotMemo keeps a map for lookups and a singly linked list for eviction.
// Bounded mode (maxSize > 0) evicts the oldest entry; unbounded mode uses the map alone.
type slotMemo struct {
	mu       sync.RWMutex
	seen     map[int64]*node
	head     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewMemo creates an in-memory slot memo.
func NewMemo(opts ...Option) Memo {
	m := &slotMemo{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.seen = make(map[int64]*node)
	if m.maxSize > 0 {
		m.nodePool = sync.Pool{
			New: func() any {
				return &node{}
			},
		}
	}
	return m
}

func (m *slotMemo) Seen(s slot.Slot) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[s.Unix()]
	return ok
}

func (m *slotMemo) Record(s slot.Slot) bool {
	key := s.Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return true
	}

	if m.maxSize > 0 {
		if len(m.seen) >= m.maxSize {
			m.evictOldest()
		}
		n := m.nodePool.Get().(*node)
		n.key = key
		n.next = m.head
		m.head = n
		m.seen[key] = n
	} else {
		m.seen[key] = nil
	}
	m.size.Add(1)
	return false
}

// evictOldest removes the tail of the list. Callers hold m.mu.
func (m *slotMemo) evictOldest() {
	if m.head == nil {
		return
	}
	if m.head.next == nil {
		delete(m.seen, m.head.key)
		m.head.reset()
		m.nodePool.Put(m.head)
		m.head = nil
		m.size.Add(-1)
		return
	}

	prev := m.head
	cur := m.head.next
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	prev.next = nil
	delete(m.seen, cur.key)
	cur.reset()
	m.nodePool.Put(cur)
	m.size.Add(-1)
}

func (m *slotMemo) Size() int64 {
	return m.size.Load()
}
