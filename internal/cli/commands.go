package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GustavoChierici/system-dashboard/internal/config"
	"github.com/GustavoChierici/system-dashboard/internal/server"
)

// newWatchCmd streams one JSON view per sample until interrupted
func newWatchCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print one JSON line per sample",
		Long: `Tick at the configured interval and print the current view as one JSON
line after every successful sample. The first line only seeds the
counters; usage values start with the second.

Examples:
  sysdash watch
  sysdash watch --interval 2s --count 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.wire()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			printed := 0
			for v := range stream(ctx, c.sampler, a.cfg.Interval) {
				if err := writeJSON(cmd, v, false); err != nil {
					return err
				}
				printed++
				if count > 0 && printed >= count {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many samples (0 = until interrupted)")
	return cmd
}

// newSnapshotCmd seeds, waits one interval and prints a single view
func newSnapshotCmd(a *app) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Sample twice and print one JSON view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.wire()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if _, err := c.sampler.Tick(ctx, time.Now()); err != nil {
				return fmt.Errorf("seeding cpu counters: %w", err)
			}
			wait := max(a.cfg.Interval, a.cfg.MinSampleInterval)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			// a failed second read still leaves host and memory to show
			_, _ = c.sampler.Tick(ctx, time.Now())

			return writeJSON(cmd, c.sampler.Snapshot(history), true)
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "include every retained point")
	return cmd
}

// newPsCmd prints the ranked process list
func newPsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Print processes ranked by CPU share",
		Long: `List processes sorted by the share of wall time each has spent on a CPU
since it started, highest first.

Examples:
  sysdash ps
  sysdash ps --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.wire()
			if err != nil {
				return err
			}
			list, err := c.procs.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, list, true)
		},
	}
	cmd.Flags().Int("limit", 0, "show at most this many processes (0 = all)")
	return cmd
}

// newServeCmd runs the ticker and the HTTP API together
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sample continuously and serve views over HTTP",
		Long: `Run the sampler and an HTTP server with JSON endpoints and a websocket
request/reply endpoint:

  GET /api/cpu/{core}   usage points of one core, -1 for the whole machine
  GET /api/cores        core count and sampler state
  GET /api/memory       latest memory reading
  GET /api/processes    processes ranked by CPU share
  GET /api/host         host identity
  GET /ws               send {"id":"1","view":"cpu","core":0}, get one reply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.wire()
			if err != nil {
				return err
			}
			srv := server.New(c.sampler, c.procs, server.WithLogger(a.log))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				for range stream(ctx, c.sampler, a.cfg.Interval) {
				}
				return nil
			})
			g.Go(func() error {
				return srv.ListenAndServe(ctx, a.cfg.Listen)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", config.Default().Listen, "HTTP listen address")
	return cmd
}
