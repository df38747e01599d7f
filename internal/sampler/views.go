package sampler

import (
	"time"

	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// State returns the current lifecycle state.
func (s *Sampler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.State
}

// Cores is the number of cores in the last snapshot, 0 before seeding.
func (s *Sampler) Cores() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.Last.Cores)
}

// CPUView returns the retained usage points of core, oldest first. Use
// AggregateKey for the whole machine. Unknown cores yield an empty slice.
func (s *Sampler) CPUView(core int) []model.Point {
	return s.st.Series.Snapshot(core)
}

// CPUVersion changes every time a point is pushed for core, so a consumer
// can skip re-reading an unchanged series.
func (s *Sampler) CPUVersion(core int) uint64 {
	return s.st.Series.Version(core)
}

// Memory returns the latest memory reading and whether one has ever
// succeeded.
func (s *Sampler) Memory() (model.MemoryInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Memory, s.st.HaveMemory
}

// HostIdentity returns the host identity string once it has been read.
func (s *Sampler) HostIdentity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Host, s.st.Host != ""
}

// LastSample is the time of the last successful sample.
func (s *Sampler) LastSample() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.LastSample
}

// Window is the retention window shared by every series.
func (s *Sampler) Window() time.Duration {
	return s.st.Series.Window()
}

// Stats returns a copy of the tick counters.
func (s *Sampler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// CoreView is one series in a View.
type CoreView struct {
	Core   int           `json:"core"`
	Latest *float64      `json:"latest,omitempty"`
	Points []model.Point `json:"points,omitempty"`
}

// View is a consistent-enough picture of everything the sampler holds,
// shaped for JSON consumers.
type View struct {
	Time   time.Time         `json:"time"`
	State  string            `json:"state"`
	Host   string            `json:"host,omitempty"`
	Memory *model.MemoryInfo `json:"memory,omitempty"`
	CPU    []CoreView        `json:"cpu"`
}

// Snapshot builds a View. Series are listed aggregate first, then by core
// index. With history false only the latest value of each series is set.
func (s *Sampler) Snapshot(history bool) View {
	s.mu.RLock()
	v := View{
		Time:  s.st.LastSample,
		State: s.st.State.String(),
		Host:  s.st.Host,
	}
	if s.st.HaveMemory {
		mem := s.st.Memory
		v.Memory = &mem
	}
	s.mu.RUnlock()

	keys := s.st.Series.Keys()
	v.CPU = make([]CoreView, 0, len(keys))
	for _, k := range keys {
		cv := CoreView{Core: k}
		if p, ok := s.st.Series.Latest(k); ok {
			val := p.Value
			cv.Latest = &val
		}
		if history {
			cv.Points = s.st.Series.Snapshot(k)
		}
		v.CPU = append(v.CPU, cv)
	}
	return v
}
