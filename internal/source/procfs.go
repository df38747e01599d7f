package source

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

// DefaultProcRoot is where procfs is normally mounted.
const DefaultProcRoot = "/proc"

// Procfs reads counters from a procfs mount. CPU and uptime are parsed
// here; meminfo and per-process stat go through prometheus/procfs.
type Procfs struct {
	root  string
	fs    procfs.FS
	log   logrus.FieldLogger
	uname []string // identity command; empty skips straight to the files
	ticks func() (float64, error)
}

// ProcfsOption configures a Procfs reader.
type ProcfsOption func(*Procfs)

// WithLogger sets the logger used for skipped per-process rows.
func WithLogger(log logrus.FieldLogger) ProcfsOption {
	return func(p *Procfs) {
		if log != nil {
			p.log = log
		}
	}
}

// WithUnameCommand overrides the host identity command. Passing no
// arguments disables the command and uses the kernel files only.
func WithUnameCommand(argv ...string) ProcfsOption {
	return func(p *Procfs) { p.uname = argv }
}

// WithClockTicks overrides the clock-tick source.
func WithClockTicks(fn func() (float64, error)) ProcfsOption {
	return func(p *Procfs) { p.ticks = fn }
}

// NewProcfs opens the procfs mounted at root ("" means /proc).
func NewProcfs(root string, opts ...ProcfsOption) (*Procfs, error) {
	if root == "" {
		root = DefaultProcRoot
	}
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return nil, errors.Unavailable(err, "opening procfs at %s", root)
	}

	p := &Procfs{
		root:  root,
		fs:    pfs,
		log:   logging.Discard(),
		uname: []string{"uname", "-a"},
		ticks: clockTicks,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Root returns the procfs mount point.
func (p *Procfs) Root() string { return p.root }

func (p *Procfs) readFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable(err, "reading %s", name)
	}
	path := filepath.Join(p.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Unavailable(err, "reading %s", path)
	}
	return data, nil
}

// CPUCounters reads <root>/stat.
func (p *Procfs) CPUCounters(ctx context.Context) (model.CPUSnapshot, error) {
	data, err := p.readFile(ctx, "stat")
	if err != nil {
		return model.CPUSnapshot{}, err
	}
	return ParseStat(data)
}

// Memory reads <root>/meminfo. Used memory is MemTotal - MemAvailable,
// matching free(1); kernels without MemAvailable fall back to
// MemTotal - MemFree - Buffers - Cached.
func (p *Procfs) Memory(ctx context.Context) (model.MemoryInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.MemoryInfo{}, errors.Unavailable(err, "reading meminfo")
	}
	mi, err := p.fs.Meminfo()
	if err != nil {
		if _, statErr := os.Stat(filepath.Join(p.root, "meminfo")); statErr != nil {
			return model.MemoryInfo{}, errors.Unavailable(err, "reading %s/meminfo", p.root)
		}
		return model.MemoryInfo{}, errors.Malformed(err, "parsing %s/meminfo", p.root)
	}
	if mi.MemTotal == nil || mi.MemFree == nil {
		return model.MemoryInfo{}, errors.Malformed(nil, "%s/meminfo lacks MemTotal or MemFree", p.root)
	}

	info := model.MemoryInfo{MemTotal: *mi.MemTotal}
	if mi.MemAvailable != nil {
		info.MemUsed = sub(*mi.MemTotal, *mi.MemAvailable)
	} else {
		info.MemUsed = sub(*mi.MemTotal, *mi.MemFree+deref(mi.Buffers)+deref(mi.Cached))
	}
	info.SwapTotal = deref(mi.SwapTotal)
	info.SwapUsed = sub(info.SwapTotal, deref(mi.SwapFree))
	return info, nil
}

// HostIdentity runs uname -a, falling back to <root>/sys/kernel when the
// utility is missing or fails.
func (p *Procfs) HostIdentity(ctx context.Context) (string, error) {
	if len(p.uname) > 0 {
		out, err := runCmd(ctx, p.uname[0], p.uname[1:]...)
		if err == nil && out != "" {
			return out, nil
		}
		p.log.WithError(err).Debug("uname failed, reading kernel identity files")
	}

	parts := make([]string, 0, 4)
	for _, name := range []string{"ostype", "hostname", "osrelease", "version"} {
		data, err := p.readFile(ctx, filepath.Join("sys", "kernel", name))
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	return strings.Join(parts, " "), nil
}

// ProcessTable lists every process in ascending PID order. Processes that
// exit between enumeration and their stat read are skipped, as are rows
// that fail to parse.
func (p *Procfs) ProcessTable(ctx context.Context) ([]model.ProcessEntry, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, errors.Unavailable(err, "enumerating processes under %s", p.root)
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })

	entries := make([]model.ProcessEntry, 0, len(procs))
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Unavailable(err, "enumerating processes under %s", p.root)
		}

		st, err := proc.Stat()
		if err != nil {
			if !gone(err) {
				p.log.WithError(err).WithField("pid", proc.PID).Debug("skipping unreadable process stat")
			}
			continue
		}
		entries = append(entries, model.ProcessEntry{
			PID:       st.PID,
			Name:      st.Comm,
			UTime:     uint64(st.UTime),
			STime:     uint64(st.STime),
			StartTime: st.Starttime,
		})
	}
	return entries, nil
}

// Uptime reads <root>/uptime.
func (p *Procfs) Uptime(ctx context.Context) (float64, error) {
	data, err := p.readFile(ctx, "uptime")
	if err != nil {
		return 0, err
	}
	return ParseUptime(data)
}

// ClockTicks returns USER_HZ.
func (p *Procfs) ClockTicks() (float64, error) { return p.ticks() }

// gone reports errors caused by a process exiting mid-read.
func gone(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, io.EOF) || strings.Contains(err.Error(), "no such process")
}

func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
