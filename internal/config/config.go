// Package config loads cmacro settings from defaults, a YAML file,
// CMACRO_* environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/fwessels/cmacro"
	"github.com/fwessels/cmacro/internal/preprocessor"
)

// Config holds all settings for a run.
type Config struct {
	Headers    []string `koanf:"headers"`
	Sources    []string `koanf:"sources"`
	Prefix     string   `koanf:"prefix"`
	OutputDir  string   `koanf:"output_dir"`
	Mode       string   `koanf:"mode"`
	Sentinel   string   `koanf:"sentinel"`
	Lenient    bool     `koanf:"lenient"`
	ObjectLike bool     `koanf:"object_like"`
	Strip      bool     `koanf:"strip"`
	Jobs       int      `koanf:"jobs"`
	Verbose    bool     `koanf:"verbose"`

	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

const (
	DefaultOutputDir = "output/temp"
	DefaultMode      = "compat"
	DefaultJobs      = 4
	EnvPrefix        = "CMACRO_"
)

var configNames = []string{"cmacro.yaml", "cmacro.yml", ".cmacro.yaml"}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds a Config. Precedence, highest first: explicitly set flags,
// environment variables, the config file, defaults. Relative paths from the
// config file are resolved against the file's directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"prefix":      preprocessor.DefaultPrefix,
		"output_dir":  DefaultOutputDir,
		"mode":        DefaultMode,
		"sentinel":    cmacro.DefaultSentinel,
		"lenient":     false,
		"object_like": false,
		"strip":       false,
		"jobs":        DefaultJobs,
		"verbose":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
		if err := resolveFilePaths(fk, filepath.Dir(used)); err != nil {
			return nil, err
		}
		if err := k.Merge(fk); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", used, err)
		}
	}

	// CMACRO_OUTPUT_DIR -> output_dir; list values are space separated
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		switch key {
		case "headers", "sources":
			return key, strings.Fields(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --header is repeatable and maps onto the headers list
			if key == "header" {
				key = "headers"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveFilePaths anchors relative paths read from the config file at
// the file's directory. Paths from env vars and flags stay relative to CWD.
func resolveFilePaths(fk *koanf.Koanf, dir string) error {
	for _, key := range []string{"headers", "sources"} {
		if !fk.Exists(key) {
			continue
		}
		paths := fk.Strings(key)
		for i, p := range paths {
			paths[i] = resolvePathRelativeTo(p, dir)
		}
		if err := fk.Set(key, paths); err != nil {
			return err
		}
	}
	if fk.Exists("output_dir") {
		return fk.Set("output_dir", resolvePathRelativeTo(fk.String("output_dir"), dir))
	}
	return nil
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := cmacro.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	return nil
}

// EngineMode returns the parsed expansion mode. Validate has already
// rejected unknown values.
func (c *Config) EngineMode() cmacro.Mode {
	m, _ := cmacro.ParseMode(c.Mode)
	return m
}

// ParseOptions translates the catalog settings into builder options.
// Skipped definitions in lenient mode are reported on logger.
func (c *Config) ParseOptions(logger *slog.Logger) []cmacro.ParseOption {
	var opts []cmacro.ParseOption
	if c.Lenient {
		opts = append(opts, cmacro.WithLenient(logger))
	}
	if c.ObjectLike {
		opts = append(opts, cmacro.WithObjectLike())
	}
	return opts
}
