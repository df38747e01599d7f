// Package cpurate turns successive kernel CPU tick snapshots into
// utilization percentages.
package cpurate

import (
	"math"

	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// Compute returns one usage entry per core of cur, aligned by core index.
// The aggregate row is excluded; see Aggregate.
func Compute(prev, cur model.CPUSnapshot) []model.CoreUsage {
	out := make([]model.CoreUsage, len(cur.Cores))
	for i, c := range cur.Cores {
		if i >= len(prev.Cores) {
			out[i] = model.CoreUsage{Core: i, Status: model.UsageNoPrior}
			continue
		}
		pct, status := Usage(prev.Cores[i], c)
		out[i] = model.CoreUsage{Core: i, Percent: pct, Status: status}
	}
	return out
}

// Aggregate computes usage of the whole-machine "cpu" row. Core is -1.
func Aggregate(prev, cur model.CPUSnapshot) model.CoreUsage {
	pct, status := Usage(prev.Aggregate, cur.Aggregate)
	return model.CoreUsage{Core: -1, Percent: pct, Status: status}
}

// Usage computes (1 - idle/total) * 100 between two rows of one core,
// clamped to [0, 100]. Idle is the idle column alone; iowait counts as
// busy time. Any counter that went backwards is treated as a reset and
// yields 0.
func Usage(prev, cur model.CPUTimes) (float64, model.UsageStatus) {
	pf, cf := prev.Fields(), cur.Fields()
	for i := range cf {
		if cf[i] < pf[i] {
			return 0, model.UsageCounterReset
		}
	}

	totalDelta := cur.Total() - prev.Total()
	if totalDelta == 0 {
		return 0, model.UsageNoElapsed
	}
	idleDelta := cur.Idle - prev.Idle

	usage := (1 - float64(idleDelta)/float64(totalDelta)) * 100
	return clamp(usage), model.UsageOK
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
