package source

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// statMinColumns is the number of counter columns every supported kernel
// reports on a cpu line: user nice system idle iowait irq softirq.
// steal (2.6.11+) is optional and read as zero when absent.
const statMinColumns = 7

// ParseStat parses the cpu lines of /proc/stat. Cores are returned in the
// order the kernel lists them.
func ParseStat(data []byte) (model.CPUSnapshot, error) {
	var snap model.CPUSnapshot
	var sawAggregate bool

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}

		label := fields[0]
		times, err := ParseCPULine(fields[1:])
		if err != nil {
			return model.CPUSnapshot{}, errors.Malformed(err, "/proc/stat line %d (%s)", lineNum, label)
		}

		if label == "cpu" {
			snap.Aggregate = times
			sawAggregate = true
			continue
		}
		if _, err := strconv.Atoi(label[3:]); err != nil {
			return model.CPUSnapshot{}, errors.Malformed(err, "/proc/stat line %d: bad cpu label %q", lineNum, label)
		}
		snap.Cores = append(snap.Cores, times)
	}

	if err := scanner.Err(); err != nil {
		return model.CPUSnapshot{}, errors.Malformed(err, "scanning /proc/stat")
	}
	if !sawAggregate {
		return model.CPUSnapshot{}, errors.Malformed(nil, "/proc/stat has no aggregate cpu line")
	}
	if len(snap.Cores) == 0 {
		return model.CPUSnapshot{}, errors.Malformed(nil, "/proc/stat lists no cores")
	}

	return snap, nil
}

// ParseCPULine parses the counter columns of one cpu line, label excluded.
// Columns past steal (guest, guest_nice) are already included in user and
// nice and are ignored.
func ParseCPULine(fields []string) (model.CPUTimes, error) {
	if len(fields) < statMinColumns {
		return model.CPUTimes{}, errors.Malformed(nil, "got %d counter fields, need at least %d", len(fields), statMinColumns)
	}

	var values [8]uint64
	for i := 0; i < len(values) && i < len(fields); i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return model.CPUTimes{}, errors.Malformed(err, "field %d", i+1)
		}
		values[i] = v
	}

	return model.CPUTimes{
		User:    values[0],
		Nice:    values[1],
		System:  values[2],
		Idle:    values[3],
		Iowait:  values[4],
		Irq:     values[5],
		Softirq: values[6],
		Steal:   values[7],
	}, nil
}

// ParseUptime returns the first column of /proc/uptime in seconds.
func ParseUptime(data []byte) (float64, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, errors.Malformed(nil, "/proc/uptime is empty")
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Malformed(err, "/proc/uptime")
	}
	if v < 0 {
		return 0, errors.Malformed(nil, "/proc/uptime is negative: %v", v)
	}
	return v, nil
}
