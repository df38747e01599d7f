package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GustavoChierici/system-dashboard/internal/config"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/procs"
	"github.com/GustavoChierici/system-dashboard/internal/sampler"
	"github.com/GustavoChierici/system-dashboard/internal/source"
)

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
}

// core is the sampler and process builder wired for one command.
type core struct {
	sampler *sampler.Sampler
	procs   *procs.Builder
}

func (a *app) wire() (*core, error) {
	cfg := a.cfg
	reader, err := source.New(cfg.Backend, cfg.ProcRoot, a.log.WithField("backend", cfg.Backend))
	if err != nil {
		return nil, err
	}
	return &core{
		sampler: sampler.New(reader,
			sampler.WithWindow(cfg.Retention),
			sampler.WithMinInterval(cfg.MinSampleInterval),
			sampler.WithReadTimeout(cfg.ReadTimeout),
			sampler.WithLogger(a.log),
		),
		procs: procs.NewBuilder(reader,
			procs.WithLimit(cfg.Top),
			procs.WithTimeout(cfg.ReadTimeout),
			procs.WithLogger(a.log),
		),
	}, nil
}

// stream ticks s every interval and sends a view after each successful
// sample until ctx is done. The first tick happens immediately. Failed
// ticks are logged by the sampler and skipped.
func stream(ctx context.Context, s *sampler.Sampler, interval time.Duration) <-chan sampler.View {
	ch := make(chan sampler.View)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(ch)

		tick := func(now time.Time) bool {
			sampled, err := s.Tick(ctx, now)
			if err != nil || !sampled {
				return ctx.Err() == nil
			}
			select {
			case ch <- s.Snapshot(false):
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !tick(time.Now()) {
			return
		}
		for {
			select {
			case t := <-ticker.C:
				if !tick(t) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func writeJSON(cmd *cobra.Command, v any, indent bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
