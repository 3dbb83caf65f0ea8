package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/cmacro"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringSlice("header", nil, "")
	fs.String("mode", "", "")
	fs.String("output-dir", "", "")
	fs.Int("jobs", 0, "")
	fs.Bool("lenient", false, "")
	return fs
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cmacro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "#define", cfg.Prefix)
	assert.Equal(t, "compat", cfg.Mode)
	assert.Equal(t, cmacro.DefaultSentinel, cfg.Sentinel)
	assert.Equal(t, DefaultJobs, cfg.Jobs)
	assert.False(t, cfg.Lenient)
	assert.Empty(t, cfg.Headers)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, cmacro.ModeCompat, cfg.EngineMode())
}

func TestLoadFileResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
headers:
  - inc/stm32_hal_adc.h
  - /abs/hal.h
sources:
  - src/main.c
prefix: "#define __HAL_"
output_dir: build
mode: strict
jobs: 2
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "inc/stm32_hal_adc.h"), "/abs/hal.h"}, cfg.Headers)
	assert.Equal(t, []string{filepath.Join(dir, "src/main.c")}, cfg.Sources)
	assert.Equal(t, filepath.Join(dir, "build"), cfg.OutputDir)
	assert.Equal(t, "#define __HAL_", cfg.Prefix)
	assert.Equal(t, cmacro.ModeStrict, cfg.EngineMode())
	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadDiscoversFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mode: strict\n")
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "cmacro.yaml", cfg.ConfigFile)
	assert.Equal(t, "strict", cfg.Mode)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "mode: strict\njobs: 2\noutput_dir: out\n")

	t.Setenv("CMACRO_JOBS", "8")
	t.Setenv("CMACRO_HEADERS", "a.h b.h")
	t.Setenv("CMACRO_LENIENT", "true")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--mode", "compat", "--header", "x.h", "--header", "y.h"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "compat", cfg.Mode, "flag beats file")
	assert.Equal(t, 8, cfg.Jobs, "env beats file")
	assert.True(t, cfg.Lenient)
	assert.Equal(t, []string{"x.h", "y.h"}, cfg.Headers, "flag beats env")
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir, "unset flag does not override")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{"unknown mode", "mode: fast\n", "unknown mode"},
		{"zero jobs", "jobs: 0\n", "jobs must be at least 1"},
		{"bad yaml", "mode: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestParseOptions(t *testing.T) {
	cfg := &Config{}
	assert.Empty(t, cfg.ParseOptions(nil))

	cfg = &Config{Lenient: true, ObjectLike: true}
	catalog, err := cmacro.ParseDefinitions([]string{"#define PI 3.14", "#bogus"}, cfg.ParseOptions(nil)...)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "PI", catalog[0].Name)
}
