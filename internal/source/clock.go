package source

import (
	"sync"

	"github.com/tklauser/go-sysconf"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
)

// DefaultClockTicks is USER_HZ on every mainstream Linux build.
const DefaultClockTicks = 100

var (
	clkTckMu    sync.Mutex
	clkTck      float64
	clkTckKnown bool
	sysconfFn   = sysconf.Sysconf
)

// clockTicks returns SC_CLK_TCK. A successful answer is cached for the
// process lifetime; a failure is asked again on the next call.
func clockTicks() (float64, error) {
	clkTckMu.Lock()
	defer clkTckMu.Unlock()

	if clkTckKnown {
		return clkTck, nil
	}
	v, err := sysconfFn(sysconf.SC_CLK_TCK)
	switch {
	case err != nil:
		return 0, errors.Unavailable(err, "sysconf(SC_CLK_TCK)")
	case v <= 0:
		return 0, errors.Malformed(nil, "sysconf(SC_CLK_TCK) returned %d", v)
	}
	clkTck, clkTckKnown = float64(v), true
	return clkTck, nil
}

// clockTicksOrDefault falls back to DefaultClockTicks where sysconf has no
// answer (non-Linux hosts).
func clockTicksOrDefault() float64 {
	if v, err := clockTicks(); err == nil {
		return v
	}
	return DefaultClockTicks
}
