package source

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// Gopsutil reads counters through gopsutil, for hosts without a Linux
// procfs. gopsutil reports CPU time in seconds; values are converted back
// to clock ticks so both backends feed the calculator the same units.
type Gopsutil struct {
	ticks func() float64
}

// NewGopsutil creates a gopsutil-backed reader.
func NewGopsutil() *Gopsutil {
	return &Gopsutil{ticks: clockTicksOrDefault}
}

// CPUCounters reads the aggregate and per-core CPU times.
func (g *Gopsutil) CPUCounters(ctx context.Context) (model.CPUSnapshot, error) {
	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return model.CPUSnapshot{}, errors.Unavailable(err, "reading aggregate cpu times")
	}
	perCore, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return model.CPUSnapshot{}, errors.Unavailable(err, "reading per-core cpu times")
	}
	if len(total) == 0 || len(perCore) == 0 {
		return model.CPUSnapshot{}, errors.Malformed(nil, "gopsutil returned no cpu times")
	}

	hz := g.ticks()
	snap := model.CPUSnapshot{
		Aggregate: toTicks(total[0], hz),
		Cores:     make([]model.CPUTimes, len(perCore)),
	}
	for i, c := range perCore {
		snap.Cores[i] = toTicks(c, hz)
	}
	return snap, nil
}

func toTicks(t cpu.TimesStat, hz float64) model.CPUTimes {
	conv := func(sec float64) uint64 {
		if sec <= 0 || math.IsNaN(sec) {
			return 0
		}
		return uint64(math.Round(sec * hz))
	}
	return model.CPUTimes{
		User:    conv(t.User),
		Nice:    conv(t.Nice),
		System:  conv(t.System),
		Idle:    conv(t.Idle),
		Iowait:  conv(t.Iowait),
		Irq:     conv(t.Irq),
		Softirq: conv(t.Softirq),
		Steal:   conv(t.Steal),
	}
}

// Memory reads RAM and swap usage in kilobytes.
func (g *Gopsutil) Memory(ctx context.Context) (model.MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.MemoryInfo{}, errors.Unavailable(err, "reading virtual memory")
	}
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return model.MemoryInfo{}, errors.Unavailable(err, "reading swap memory")
	}
	return model.MemoryInfo{
		MemTotal:  vm.Total / 1024,
		MemUsed:   vm.Used / 1024,
		SwapTotal: sw.Total / 1024,
		SwapUsed:  sw.Used / 1024,
	}, nil
}

// HostIdentity formats host info in the shape of uname -a.
func (g *Gopsutil) HostIdentity(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", errors.Unavailable(err, "reading host info")
	}
	parts := []string{info.OS, info.Hostname, info.KernelVersion, info.KernelArch}
	if info.Platform != "" {
		parts = append(parts, strings.TrimSpace(info.Platform+" "+info.PlatformVersion))
	}
	out := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if out == "" {
		return "", errors.Malformed(nil, "host info is empty")
	}
	return out, nil
}

// ProcessTable lists processes in ascending PID order. Processes whose
// name or times cannot be read, usually because they exited, are skipped.
func (g *Gopsutil) ProcessTable(ctx context.Context) ([]model.ProcessEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Unavailable(err, "enumerating processes")
	}
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, errors.Unavailable(err, "reading boot time")
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid < procs[j].Pid })

	hz := g.ticks()
	entries := make([]model.ProcessEntry, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Unavailable(err, "enumerating processes")
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		times, err := p.TimesWithContext(ctx)
		if err != nil {
			continue
		}
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			continue
		}

		sinceBoot := float64(created)/1000 - float64(boot)
		entries = append(entries, model.ProcessEntry{
			PID:       int(p.Pid),
			Name:      name,
			UTime:     uint64(math.Round(math.Max(times.User, 0) * hz)),
			STime:     uint64(math.Round(math.Max(times.System, 0) * hz)),
			StartTime: uint64(math.Round(math.Max(sinceBoot, 0) * hz)),
		})
	}
	return entries, nil
}

// Uptime returns seconds since boot.
func (g *Gopsutil) Uptime(ctx context.Context) (float64, error) {
	up, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, errors.Unavailable(err, "reading uptime")
	}
	return float64(up), nil
}

// ClockTicks returns USER_HZ, or DefaultClockTicks where it is unknown.
func (g *Gopsutil) ClockTicks() (float64, error) {
	hz := g.ticks()
	if hz <= 0 {
		return 0, errors.Malformed(nil, "clock tick rate %v", hz)
	}
	return hz, nil
}
