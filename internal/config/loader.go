package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
)

const (
	// FileName is the config file looked up in the working directory and
	// in GlobalDir under the home directory.
	FileName  = "sysdash.yaml"
	GlobalDir = ".config/sysdash"
	EnvPrefix = "SYSDASH"
	EnvFile   = ".env"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"interval":            "interval",
	"min-sample-interval": "min_sample_interval",
	"retention":           "retention",
	"read-timeout":        "read_timeout",
	"backend":             "backend",
	"proc-root":           "proc_root",
	"top":                 "top",
	"limit":               "top",
	"listen":              "listen",
	"log-level":           "log_level",
	"log-format":          "log_format",
}

// Options control where Load looks.
type Options struct {
	// File is an explicit config path; it must exist when set.
	File string
	// EnvFile is loaded into the environment before reading SYSDASH_*
	// variables. Missing files are ignored. Defaults to .env.
	EnvFile string
	// Flags, when set, override file and environment values for every flag
	// the user actually passed.
	Flags *pflag.FlagSet
}

// Load builds the effective configuration: defaults, then the config file,
// then SYSDASH_* environment variables, then flags. It returns the path of
// the file used, empty when none was found.
func Load(opts Options) (*Config, string, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = EnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read "+envFile,
			"Use KEY=value lines")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := Find(opts.File)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the YAML syntax in "+path)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, "", err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config value",
			"Durations look like 500ms or 2s")
	}
	if err := Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Find locates the config file:
// 1. explicit path
// 2. sysdash.yaml in the working directory
// 3. ~/.config/sysdash/sysdash.yaml
//
// It returns "" when there is nothing to read.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot read config file: "+explicit,
				"Check the path passed to --config")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, FileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		global := filepath.Join(home, GlobalDir, FileName)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}
	return "", nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("interval", d.Interval)
	v.SetDefault("min_sample_interval", d.MinSampleInterval)
	v.SetDefault("retention", d.Retention)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("proc_root", d.ProcRoot)
	v.SetDefault("top", d.Top)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// bindFlags binds only flags that were set, so an untouched flag's default
// never hides a file or environment value.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = errors.WrapWithCode(err, errors.ErrConfig, "Cannot bind flag --"+f.Name, "")
		}
	})
	return bindErr
}
