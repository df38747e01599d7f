// Package sampler turns periodic ticks into per-core CPU usage series and
// a cached memory and host view. It owns no timer: the host calls Tick on
// its own schedule, and Tick rate-limits itself to the minimum interval.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GustavoChierici/system-dashboard/internal/cpurate"
	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/series"
	"github.com/GustavoChierici/system-dashboard/internal/source"
)

const (
	DefaultMinInterval = time.Second
	DefaultReadTimeout = 500 * time.Millisecond
)

// Sampler polls a source.Reader and keeps the derived series.
type Sampler struct {
	reader      source.Reader
	window      time.Duration
	minInterval time.Duration
	readTimeout time.Duration
	log         logrus.FieldLogger

	tickMu sync.Mutex // serializes Tick

	mu    sync.RWMutex // guards st and stats
	st    MetricsState
	stats Stats
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithWindow sets the retention window of every series.
func WithWindow(d time.Duration) Option {
	return func(s *Sampler) { s.window = d }
}

// WithMinInterval sets how long after a sample the next one is due.
func WithMinInterval(d time.Duration) Option {
	return func(s *Sampler) { s.minInterval = d }
}

// WithReadTimeout bounds each OS read. 0 disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Sampler) { s.readTimeout = d }
}

// WithLogger sets the sampler's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sampler) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a sampler in the Uninitialized state.
func New(reader source.Reader, opts ...Option) *Sampler {
	s := &Sampler{
		reader:      reader,
		window:      series.DefaultWindow,
		minInterval: DefaultMinInterval,
		readTimeout: DefaultReadTimeout,
		log:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.st.Series = series.NewStore[int](s.window)
	return s
}

// Tick samples if a sample is due at now. It reports whether a snapshot
// was taken (seeded or computed). A failed read returns the error and
// leaves every stored value untouched; the next tick simply tries again.
func (s *Sampler) Tick(ctx context.Context, now time.Time) (bool, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	s.stats.Ticks++
	state, last := s.st.State, s.st.LastSample
	if state != Uninitialized && now.Sub(last) < s.minInterval {
		s.stats.Skipped++
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	snap, err := source.Bound(ctx, s.readTimeout, "reading cpu counters", s.reader.CPUCounters)
	if err != nil {
		s.mu.Lock()
		s.stats.Failures++
		s.mu.Unlock()
		s.log.WithError(err).WithField("code", errors.Code(err)).Warn("cpu counter read failed, keeping last view")
		return false, err
	}

	s.refreshMemory(ctx)
	s.refreshHost(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Samples++
	if state == Uninitialized {
		s.st.Last = snap
		s.st.LastSample = now
		s.st.State = Seeded
		s.log.WithField("cores", len(snap.Cores)).Info("seeded cpu counters")
		return true, nil
	}

	for _, u := range cpurate.Compute(s.st.Last, snap) {
		s.record(u, now)
	}
	s.record(cpurate.Aggregate(s.st.Last, snap), now)

	if len(snap.Cores) != len(s.st.Last.Cores) {
		s.log.WithFields(logrus.Fields{"was": len(s.st.Last.Cores), "now": len(snap.Cores)}).Info("core count changed")
	}
	s.st.Last = snap
	s.st.LastSample = now
	s.st.State = Running
	return true, nil
}

// record pushes a usage value into its series. Called with mu held.
// Counters that did not move still yield a 0 point; resets and cores
// without a prior row yield none.
func (s *Sampler) record(u model.CoreUsage, now time.Time) {
	switch u.Status {
	case model.UsageOK, model.UsageNoElapsed:
		s.st.Series.Push(u.Core, now, u.Percent)
	case model.UsageCounterReset:
		s.stats.Resets++
		s.log.WithFields(logrus.Fields{"core": u.Core, "code": errors.ErrCounterReset}).
			Info("cpu counters went backwards, skipping this delta")
	default:
		s.log.WithFields(logrus.Fields{"core": u.Core, "status": u.Status.String()}).Debug("no usage value this tick")
	}
}

func (s *Sampler) refreshMemory(ctx context.Context) {
	mem, err := source.Bound(ctx, s.readTimeout, "reading memory", s.reader.Memory)
	if err != nil {
		s.log.WithError(err).WithField("code", errors.Code(err)).Warn("memory read failed, keeping last value")
		return
	}
	s.mu.Lock()
	s.st.Memory = mem
	s.st.HaveMemory = true
	s.mu.Unlock()
}

// refreshHost fetches the identity string until it has been read once.
func (s *Sampler) refreshHost(ctx context.Context) {
	s.mu.RLock()
	known := s.st.Host != ""
	s.mu.RUnlock()
	if known {
		return
	}

	host, err := source.Bound(ctx, s.readTimeout, "reading host identity", s.reader.HostIdentity)
	if err != nil {
		s.log.WithError(err).Debug("host identity unavailable, will retry")
		return
	}
	s.mu.Lock()
	s.st.Host = host
	s.mu.Unlock()
}
