// Package testing provides test doubles for the source package.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// cpuResult is one queued CPUCounters answer.
type cpuResult struct {
	snap model.CPUSnapshot
	err  error
}

// FakeReader is a scripted source.Reader. CPU snapshots are handed out in
// the order they were queued; once the queue is empty CPUCounters fails
// with SOURCE_UNAVAILABLE.
type FakeReader struct {
	mu sync.Mutex

	cpu []cpuResult

	// Configuration
	Mem       model.MemoryInfo
	MemErr    error
	Host      string
	HostErr   error
	Procs     []model.ProcessEntry
	ProcsErr  error
	UptimeSec float64
	UptimeErr error
	Hz        float64
	HzErr     error
	Delay     time.Duration // applied to every context-taking call

	// Call tracking
	CPUCalls    int
	MemCalls    int
	HostCalls   int
	ProcsCalls  int
	UptimeCalls int
	HzCalls     int
}

// NewFakeReader creates a reader with a 100 Hz clock and a fixed host name.
func NewFakeReader() *FakeReader {
	return &FakeReader{Hz: 100, Host: "Linux fakehost 6.1.0 x86_64"}
}

// QueueCPU appends snapshots to the CPUCounters queue.
func (f *FakeReader) QueueCPU(snaps ...model.CPUSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range snaps {
		f.cpu = append(f.cpu, cpuResult{snap: s})
	}
}

// QueueCPUError appends a failing CPUCounters answer.
func (f *FakeReader) QueueCPUError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cpu = append(f.cpu, cpuResult{err: err})
}

// SetMemory replaces the Memory answer.
func (f *FakeReader) SetMemory(mem model.MemoryInfo, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Mem, f.MemErr = mem, err
}

// SetProcesses replaces the ProcessTable answer.
func (f *FakeReader) SetProcesses(entries []model.ProcessEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Procs, f.ProcsErr = entries, err
}

// Calls returns how many times CPUCounters was called.
func (f *FakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CPUCalls
}

func (f *FakeReader) wait(ctx context.Context) error {
	f.mu.Lock()
	d := f.Delay
	f.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return errors.Unavailable(ctx.Err(), "fake read")
	}
}

func (f *FakeReader) CPUCounters(ctx context.Context) (model.CPUSnapshot, error) {
	if err := f.wait(ctx); err != nil {
		return model.CPUSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CPUCalls++
	if len(f.cpu) == 0 {
		return model.CPUSnapshot{}, errors.Unavailable(nil, "fake reader has no cpu snapshots left")
	}
	r := f.cpu[0]
	f.cpu = f.cpu[1:]
	return r.snap, r.err
}

func (f *FakeReader) Memory(ctx context.Context) (model.MemoryInfo, error) {
	if err := f.wait(ctx); err != nil {
		return model.MemoryInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MemCalls++
	return f.Mem, f.MemErr
}

func (f *FakeReader) HostIdentity(ctx context.Context) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HostCalls++
	return f.Host, f.HostErr
}

func (f *FakeReader) ProcessTable(ctx context.Context) ([]model.ProcessEntry, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcsCalls++
	out := make([]model.ProcessEntry, len(f.Procs))
	copy(out, f.Procs)
	return out, f.ProcsErr
}

func (f *FakeReader) Uptime(ctx context.Context) (float64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UptimeCalls++
	return f.UptimeSec, f.UptimeErr
}

func (f *FakeReader) ClockTicks() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HzCalls++
	return f.Hz, f.HzErr
}
