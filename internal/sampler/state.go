package sampler

import (
	"time"

	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/series"
)

// State is the sampler's position in its lifecycle.
type State int

const (
	// Uninitialized: no snapshot has been read yet.
	Uninitialized State = iota
	// Seeded: one snapshot is stored, no usage computed yet.
	Seeded
	// Running: every due tick computes and stores usage.
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Seeded:
		return "seeded"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// AggregateKey is the series key of the whole-machine CPU row. Per-core
// series use the core index.
const AggregateKey = -1

// MetricsState is everything the sampler owns. Only Tick mutates it.
type MetricsState struct {
	State      State
	Last       model.CPUSnapshot
	LastSample time.Time
	Memory     model.MemoryInfo
	HaveMemory bool
	Host       string
	Series     *series.Store[int]
}

// Stats counts tick outcomes since the sampler was created.
type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Samples  uint64 `json:"samples"`
	Skipped  uint64 `json:"skipped"`
	Failures uint64 `json:"failures"`
	Resets   uint64 `json:"counter_resets"`
}
