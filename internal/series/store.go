package series

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// Store holds one Series per key. Unknown keys are created on first push
// and live until the Store is dropped. It is safe for one writer and any
// number of concurrent readers.
type Store[K cmp.Ordered] struct {
	mu       sync.RWMutex
	window   time.Duration
	series   map[K]*Series
	versions map[K]uint64
}

// NewStore creates a store whose series share the given window.
func NewStore[K cmp.Ordered](window time.Duration) *Store[K] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store[K]{
		window:   window,
		series:   make(map[K]*Series),
		versions: make(map[K]uint64),
	}
}

// Push adds a point to the series for key.
func (st *Store[K]) Push(key K, ts time.Time, v float64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.series[key]
	if !ok {
		s = New(st.window)
		st.series[key] = s
	}
	s.Push(ts, v)
	st.versions[key]++
}

// Snapshot returns the in-window points for key, oldest first.
// An unknown key yields an empty slice.
func (st *Store[K]) Snapshot(key K) []model.Point {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.series[key]
	if !ok {
		return []model.Point{}
	}
	return s.Snapshot()
}

// Latest returns the newest point for key.
func (st *Store[K]) Latest(key K) (model.Point, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.series[key]
	if !ok {
		return model.Point{}, false
	}
	return s.Latest()
}

// Version returns a counter that increases on every push to key. Readers
// can compare it with a cached value to decide whether to redraw.
func (st *Store[K]) Version(key K) uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.versions[key]
}

// Len returns the number of live points for key.
func (st *Store[K]) Len(key K) int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if s, ok := st.series[key]; ok {
		return s.Len()
	}
	return 0
}

// Keys returns all known keys in ascending order.
func (st *Store[K]) Keys() []K {
	st.mu.RLock()
	keys := make([]K, 0, len(st.series))
	for k := range st.series {
		keys = append(keys, k)
	}
	st.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Window returns the retention window shared by all series.
func (st *Store[K]) Window() time.Duration { return st.window }
