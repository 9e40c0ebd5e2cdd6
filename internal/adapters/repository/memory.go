package repository

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"
)

// Treap-based, in-memory Store implementation.
//
// Observations are ordered by slot, so in-order traversal yields them
// oldest first and the rightmost node is the latest.

type node struct {
	key   int64
	obs   model.Observation
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// insert adds nn under n. The caller has checked that the key is absent.
func insert(n, nn *node) *node {
	if n == nil {
		return nn
	}
	if nn.key < n.key {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func find(n *node, key int64) *node {
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

func rightmost(n *node) *node {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n
}

// collectRange appends nodes with lo <= key <= hi in key order.
func collectRange(n *node, lo, hi int64, out *[]model.Observation) {
	if n == nil {
		return
	}
	if lo < n.key {
		collectRange(n.left, lo, hi, out)
	}
	if lo <= n.key && n.key <= hi {
		*out = append(*out, n.obs)
	}
	if hi > n.key {
		collectRange(n.right, lo, hi, out)
	}
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	root    *node
	nextObs int64

	regions    map[model.RegionKey]model.Region
	nextRegion int64
	closed     bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[model.RegionKey]model.Region)}
}

func (s *MemoryStore) Exists(ctx context.Context, sl slot.Slot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	return find(s.root, sl.Unix()) != nil, nil
}

func (s *MemoryStore) Put(ctx context.Context, sl slot.Slot, processedAt time.Time, fs contour.FeatureSet) error {
	defer observe("put")()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	key := sl.Unix()
	if find(s.root, key) != nil {
		return fault.NewKind("memory.put "+sl.String(), fault.ErrDuplicateSlot)
	}
	s.nextObs++
	s.root = insert(s.root, &node{
		key:  key,
		prio: rand.Uint64(),
		size: 1,
		obs: model.Observation{
			ID:          s.nextObs,
			Slot:        sl,
			ProcessedAt: processedAt.UTC(),
			Features:    cloneFeatures(fs),
		},
	})
	return nil
}

func (s *MemoryStore) LatestStored(ctx context.Context) (slot.Slot, bool, error) {
	obs, ok, err := s.Latest(ctx)
	return obs.Slot, ok, err
}

func (s *MemoryStore) Range(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	defer observe("range")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Observation, 0)
	if end.Before(start) {
		return out, nil
	}
	// Slots are aligned, so a start inside a period excludes that slot.
	lo := slot.Floor(start)
	if lo.Time().Before(start) {
		lo = lo.Next()
	}
	collectRange(s.root, lo.Unix(), end.Unix(), &out)
	return out, nil
}

func (s *MemoryStore) Latest(ctx context.Context) (model.Observation, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Observation{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Observation{}, false, ErrClosed
	}
	n := rightmost(s.root)
	if n == nil {
		return model.Observation{}, false, nil
	}
	return n.obs, true, nil
}

func (s *MemoryStore) UpsertAll(ctx context.Context, records []model.Region) error {
	defer observe("upsert_regions")()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range records {
		r.ObservedDate = model.Date(r.ObservedDate)
		r.FirstDate = r.FirstDate.UTC()
		k := r.Key()
		if old, ok := s.regions[k]; ok {
			r.ID = old.ID
		} else {
			s.nextRegion++
			r.ID = s.nextRegion
		}
		s.regions[k] = r
	}
	return nil
}

func (s *MemoryStore) RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error) {
	lo, hi := dateBounds(start, end)
	return s.selectRegions(ctx, func(r model.Region) bool {
		return !r.ObservedDate.Before(lo) && !r.ObservedDate.After(hi)
	})
}

func (s *MemoryStore) ByRegion(ctx context.Context, region int) ([]model.Region, error) {
	return s.selectRegions(ctx, func(r model.Region) bool { return r.Region == region })
}

func (s *MemoryStore) selectRegions(ctx context.Context, keep func(model.Region) bool) ([]model.Region, error) {
	defer observe("query_regions")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Region, 0)
	for _, r := range s.regions {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Region) int {
		if c := a.ObservedDate.Compare(b.ObservedDate); c != 0 {
			return c
		}
		return a.Region - b.Region
	})
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Driver:       DriverMemory,
		Observations: int64(nsize(s.root)),
		Regions:      int64(len(s.regions)),
	}, nil
}

// Close releases the contents. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.root = nil
	s.regions = nil
	return nil
}

func cloneFeatures(fs contour.FeatureSet) contour.FeatureSet {
	return contour.FeatureSet{
		Umbra:    cloneContours(fs.Umbra),
		Penumbra: cloneContours(fs.Penumbra),
	}
}

func cloneContours(cs []contour.Contour) []contour.Contour {
	out := make([]contour.Contour, len(cs))
	for i, c := range cs {
		out[i] = slices.Clone(c)
	}
	return out
}
