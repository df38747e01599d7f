package series

import (
	"time"

	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// DefaultWindow is the default retention window of a series.
const DefaultWindow = 60 * time.Second

// Series is a time-ordered deque of points bounded by a retention window.
// A point is kept while newest.Time - point.Time <= window, where newest is
// the most recently pushed point. Series is not safe for concurrent use;
// Store adds locking.
type Series struct {
	window time.Duration
	points []model.Point
	head   int // index of the oldest live point
}

// New creates an empty series. A non-positive window uses DefaultWindow.
func New(window time.Duration) *Series {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Series{window: window}
}

// Window returns the retention window.
func (s *Series) Window() time.Duration { return s.window }

// Push appends a point and evicts every point older than the window,
// measured from the point just pushed.
func (s *Series) Push(ts time.Time, v float64) {
	s.points = append(s.points, model.Point{Time: ts, Value: v})

	for s.head < len(s.points)-1 && ts.Sub(s.points[s.head].Time) > s.window {
		s.points[s.head] = model.Point{}
		s.head++
	}

	// Reclaim the dead prefix once it dominates the backing array.
	if s.head > 0 && s.head >= len(s.points)/2 {
		n := copy(s.points, s.points[s.head:])
		clear(s.points[n:])
		s.points = s.points[:n]
		s.head = 0
	}
}

// Len returns the number of live points.
func (s *Series) Len() int { return len(s.points) - s.head }

// Snapshot returns a copy of the live points, oldest first.
func (s *Series) Snapshot() []model.Point {
	out := make([]model.Point, s.Len())
	copy(out, s.points[s.head:])
	return out
}

// Latest returns the newest point.
func (s *Series) Latest() (model.Point, bool) {
	if s.Len() == 0 {
		return model.Point{}, false
	}
	return s.points[len(s.points)-1], true
}
