package model

import "time"

// CPUTimes is one row of kernel CPU tick counters.
type CPUTimes struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	Iowait  uint64
	Irq     uint64
	Softirq uint64
	Steal   uint64
}

// Total returns the sum of all tracked counters.
func (t CPUTimes) Total() uint64 {
	return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
}

// Fields returns the counters in /proc/stat column order.
func (t CPUTimes) Fields() [8]uint64 {
	return [8]uint64{t.User, t.Nice, t.System, t.Idle, t.Iowait, t.Irq, t.Softirq, t.Steal}
}

// CPUSnapshot is one read of the whole counter set. Cores[0] is cpu0;
// the aggregate "cpu" row lives in Aggregate and never in Cores.
type CPUSnapshot struct {
	Aggregate CPUTimes
	Cores     []CPUTimes
}

// UsageStatus tells whether a computed usage value is meaningful.
type UsageStatus int

const (
	UsageOK UsageStatus = iota
	// UsageNoPrior marks a core with no row in the previous snapshot.
	UsageNoPrior
	// UsageCounterReset marks a core whose counters went backwards.
	UsageCounterReset
	// UsageNoElapsed marks a core whose total counter did not move.
	UsageNoElapsed
)

func (s UsageStatus) String() string {
	switch s {
	case UsageOK:
		return "ok"
	case UsageNoPrior:
		return "no-prior"
	case UsageCounterReset:
		return "counter-reset"
	case UsageNoElapsed:
		return "no-elapsed"
	default:
		return "unknown"
	}
}

// CoreUsage is the derived utilization of one core over one tick.
type CoreUsage struct {
	Core    int
	Percent float64 // 0-100
	Status  UsageStatus
}

// Point is a single time series sample.
type Point struct {
	Time  time.Time `json:"t"`
	Value float64   `json:"v"`
}

// MemoryInfo captures RAM and swap usage in kilobytes.
type MemoryInfo struct {
	MemTotal  uint64 `json:"mem_total_kb"`
	MemUsed   uint64 `json:"mem_used_kb"`
	SwapTotal uint64 `json:"swap_total_kb"`
	SwapUsed  uint64 `json:"swap_used_kb"`
}

// ProcessEntry is a raw process table row. Times are in clock ticks.
type ProcessEntry struct {
	PID       int
	Name      string
	UTime     uint64
	STime     uint64
	StartTime uint64 // ticks since boot
}

// ProcessRecord is a ranked process list entry.
type ProcessRecord struct {
	PID  int     `json:"pid"`
	Name string  `json:"name"`
	CPU  float64 `json:"cpu_percent"`
}
