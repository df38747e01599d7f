// Package procs builds ranked process snapshots. A snapshot costs one OS
// read per process, so it is built on request rather than every tick.
package procs

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/source"
)

// Builder produces process lists sorted by lifetime CPU share.
type Builder struct {
	reader  source.Reader
	limit   int
	timeout time.Duration
	log     logrus.FieldLogger

	mu sync.Mutex
	hz float64 // 0 until known
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimit keeps only the first n records after sorting. 0 keeps all.
func WithLimit(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.limit = n
		}
	}
}

// WithTimeout bounds the whole table read.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// WithLogger sets the builder's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBuilder creates a Builder over reader.
func NewBuilder(reader source.Reader, opts ...Option) *Builder {
	b := &Builder{
		reader: reader,
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// clockTicks asks the reader once; the rate is fixed for the life of the
// kernel. A failure is retried on the next call.
func (b *Builder) clockTicks() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hz > 0 {
		return b.hz, nil
	}
	hz, err := b.reader.ClockTicks()
	if err != nil {
		return 0, err
	}
	if hz <= 0 {
		return 0, errors.Malformed(nil, "clock tick rate %v", hz)
	}
	b.hz = hz
	return hz, nil
}

// List returns every readable process sorted by CPU share, highest first.
// Ties keep enumeration order.
func (b *Builder) List(ctx context.Context) ([]model.ProcessRecord, error) {
	hz, err := b.clockTicks()
	if err != nil {
		return nil, err
	}

	uptime, err := source.Bound(ctx, b.timeout, "reading uptime", b.reader.Uptime)
	if err != nil {
		return nil, err
	}
	table, err := source.Bound(ctx, b.timeout, "reading process table", b.reader.ProcessTable)
	if err != nil {
		return nil, err
	}

	records := Rank(table, hz, uptime)
	if b.limit > 0 && len(records) > b.limit {
		records = records[:b.limit]
	}
	b.log.WithFields(logrus.Fields{"processes": len(table), "returned": len(records)}).Debug("built process list")
	return records, nil
}

// Rank converts raw entries into records and stable-sorts them by CPU
// share descending.
func Rank(entries []model.ProcessEntry, hz, uptime float64) []model.ProcessRecord {
	records := make([]model.ProcessRecord, len(entries))
	for i, e := range entries {
		records[i] = model.ProcessRecord{PID: e.PID, Name: e.Name, CPU: Share(e, hz, uptime)}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].CPU > records[j].CPU })
	return records
}

// Share is the percentage of wall time since the process started that it
// spent on a CPU: (utime+stime)/hz * 100 / (uptime - start/hz). A process
// with more than one busy thread can exceed 100.
func Share(e model.ProcessEntry, hz, uptime float64) float64 {
	if hz <= 0 {
		return 0
	}
	cpuSeconds := float64(e.UTime+e.STime) / hz
	elapsed := uptime - float64(e.StartTime)/hz
	if elapsed <= 0 {
		return 0
	}
	share := cpuSeconds * 100 / elapsed
	if math.IsNaN(share) || math.IsInf(share, 0) || share < 0 {
		return 0
	}
	return share
}
