package config

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/source"
)

// Config carries runtime options for sysdash.
type Config struct {
	Interval          time.Duration `mapstructure:"interval"`
	MinSampleInterval time.Duration `mapstructure:"min_sample_interval"`
	Retention         time.Duration `mapstructure:"retention"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	Backend           string        `mapstructure:"backend"`
	ProcRoot          string        `mapstructure:"proc_root"`
	Top               int           `mapstructure:"top"`
	Listen            string        `mapstructure:"listen"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
}

func Default() *Config {
	return &Config{
		Interval:          time.Second,
		MinSampleInterval: time.Second,
		Retention:         60 * time.Second,
		ReadTimeout:       500 * time.Millisecond,
		Backend:           source.BackendProcfs,
		ProcRoot:          "/proc",
		Top:               0,
		Listen:            "127.0.0.1:8089",
		LogLevel:          "info",
		LogFormat:         logging.FormatText,
	}
}

// Validate checks every field and returns the first problem as a CONFIG
// error.
func Validate(cfg *Config) error {
	positive := []struct {
		key string
		val time.Duration
	}{
		{"interval", cfg.Interval},
		{"min_sample_interval", cfg.MinSampleInterval},
		{"retention", cfg.Retention},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return invalid(p.key, p.val, "use a positive duration such as 1s")
		}
	}
	if cfg.ReadTimeout < 0 {
		return invalid("read_timeout", cfg.ReadTimeout, "use 0 to disable the bound or a positive duration")
	}

	switch cfg.Backend {
	case source.BackendProcfs, source.BackendGopsutil:
	default:
		return invalid("backend", cfg.Backend, "use procfs or gopsutil")
	}
	if cfg.Backend == source.BackendProcfs && cfg.ProcRoot == "" {
		return invalid("proc_root", cfg.ProcRoot, "point it at a procfs mount, usually /proc")
	}
	if cfg.Top < 0 {
		return invalid("top", cfg.Top, "use 0 to list every process")
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid listen address %q", cfg.Listen),
			"Use host:port, for example 127.0.0.1:8089")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid log_level %q", cfg.LogLevel),
			"Use one of trace, debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return invalid("log_format", cfg.LogFormat, "use text or json")
	}
	return nil
}

func invalid(key string, val any, suggestion string) error {
	return errors.New(errors.ErrConfig, fmt.Sprintf("Invalid %s %v", key, val), suggestion)
}

// fileView is the on-disk shape of Config: durations as strings so the
// output can be fed back through --config.
type fileView struct {
	Interval          string `yaml:"interval"`
	MinSampleInterval string `yaml:"min_sample_interval"`
	Retention         string `yaml:"retention"`
	ReadTimeout       string `yaml:"read_timeout"`
	Backend           string `yaml:"backend"`
	ProcRoot          string `yaml:"proc_root"`
	Top               int    `yaml:"top"`
	Listen            string `yaml:"listen"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
}

// YAML renders the configuration in the format Load reads.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(fileView{
		Interval:          c.Interval.String(),
		MinSampleInterval: c.MinSampleInterval.String(),
		Retention:         c.Retention.String(),
		ReadTimeout:       c.ReadTimeout.String(),
		Backend:           c.Backend,
		ProcRoot:          c.ProcRoot,
		Top:               c.Top,
		Listen:            c.Listen,
		LogLevel:          c.LogLevel,
		LogFormat:         c.LogFormat,
	})
}
