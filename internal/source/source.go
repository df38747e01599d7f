// Package source reads raw counters from the operating system.
//
// Every method fails with a SOURCE_UNAVAILABLE error when the data source
// cannot be reached and with MALFORMED_SOURCE when its content cannot be
// parsed. Both are transient from the caller's point of view.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// Backend names accepted by New.
const (
	BackendProcfs   = "procfs"
	BackendGopsutil = "gopsutil"
)

// Reader is the raw counter reader. Implementations hold no sampling
// state.
type Reader interface {
	CPUCounters(ctx context.Context) (model.CPUSnapshot, error)
	Memory(ctx context.Context) (model.MemoryInfo, error)
	HostIdentity(ctx context.Context) (string, error)
	ProcessTable(ctx context.Context) ([]model.ProcessEntry, error)
	// Uptime returns seconds since boot.
	Uptime(ctx context.Context) (float64, error)
	// ClockTicks returns the kernel clock-tick rate (USER_HZ).
	ClockTicks() (float64, error)
}

// New builds a Reader for the named backend. root is only used by the
// procfs backend.
func New(backend, root string, log logrus.FieldLogger) (Reader, error) {
	switch backend {
	case BackendProcfs, "":
		p, err := NewProcfs(root, WithLogger(log))
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendGopsutil:
		return NewGopsutil(), nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("unknown backend %q", backend),
			"use procfs or gopsutil")
	}
}

// Bound runs fn with a deadline. A read still running when the deadline
// passes is abandoned and reported as SOURCE_UNAVAILABLE; its result is
// discarded. A non-positive timeout runs fn directly.
func Bound[T any](ctx context.Context, timeout time.Duration, what string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Unavailable(ctx.Err(), "%s did not finish within %s", what, timeout)
	}
}
