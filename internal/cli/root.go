package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GustavoChierici/system-dashboard/internal/config"
)

// app is the state shared by every command of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
	cfgPath    string
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	d := config.Default()

	root := &cobra.Command{
		Use:   "sysdash",
		Short: "Sample CPU, memory and process usage",
		Long: `sysdash samples per-core CPU usage into a sliding window, caches memory and
host information, and ranks processes by CPU share.

Configuration comes from sysdash.yaml (working directory or
~/.config/sysdash/), SYSDASH_* environment variables, a .env file, and
flags, in increasing order of precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: sysdash.yaml in . or ~/.config/sysdash)")
	pf.String("log-level", d.LogLevel, "log level: trace, debug, info, warn, error")
	pf.String("log-format", d.LogFormat, "log format: text or json")
	pf.String("backend", d.Backend, "counter source: procfs or gopsutil")
	pf.String("proc-root", d.ProcRoot, "procfs mount point")
	pf.Duration("interval", d.Interval, "tick interval")
	pf.Duration("min-sample-interval", d.MinSampleInterval, "minimum time between samples")
	pf.Duration("retention", d.Retention, "how long usage points are kept")
	pf.Duration("read-timeout", d.ReadTimeout, "bound on each OS read, 0 disables it")

	root.AddCommand(
		newWatchCmd(a),
		newSnapshotCmd(a),
		newPsCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves configuration and logging before any command runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, path, err := config.Load(config.Options{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath, a.log = cfg, path, log
	if path != "" {
		log.WithField("path", path).Debug("loaded config file")
	}
	return nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
