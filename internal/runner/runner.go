// Package runner expands a set of C sources against the catalog built from
// a set of headers.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/fwessels/cmacro"
	"github.com/fwessels/cmacro/internal/config"
	"github.com/fwessels/cmacro/internal/strip"
)

// Runner holds the settings of one batch. It is reusable: every Run rebuilds
// the catalog so header edits are picked up.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// FileResult describes one expanded source.
type FileResult struct {
	Input  string
	Output string
	Stats  cmacro.Stats
	// Stripped counts function definitions removed when stripping is on.
	Stripped int
}

// Result summarizes a batch.
type Result struct {
	Macros int
	Files  []FileResult
	Total  cmacro.Stats
}

func New(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg, logger: logger}
}

// LoadCatalog parses every configured header in order and concatenates the
// results, so a header listed earlier takes priority.
func (r *Runner) LoadCatalog() (cmacro.Catalog, error) {
	var catalog cmacro.Catalog
	opts := r.cfg.ParseOptions(r.logger)
	for _, h := range r.cfg.Headers {
		c, err := cmacro.LoadHeader(h, r.cfg.Prefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load header: %w", err)
		}
		r.logger.Debug("loaded header", "path", h, "macros", len(c))
		catalog = append(catalog, c...)
	}
	return catalog, nil
}

// Engine builds the catalog and wraps it in an engine configured from the
// run settings.
func (r *Runner) Engine() (*cmacro.Engine, error) {
	catalog, err := r.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return cmacro.NewEngine(catalog, cmacro.Options{
		Mode:     r.cfg.EngineMode(),
		Sentinel: r.cfg.Sentinel,
		Logger:   r.logger,
	}), nil
}

// ResolveSources expands glob patterns. Plain paths are kept even when they
// do not exist so that opening them reports the error.
func ResolveSources(patterns []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, p := range patterns {
		matches := []string{p}
		if hasMeta(p) {
			var err error
			if matches, err = filepath.Glob(p); err != nil {
				return nil, fmt.Errorf("bad source pattern %q: %w", p, err)
			}
			sort.Strings(matches)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func hasMeta(p string) bool {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// Run expands every source into the output directory under its base name.
// Files are processed concurrently, bounded by the configured job count; the
// first failure cancels the remaining work.
func (r *Runner) Run(ctx context.Context, patterns []string) (*Result, error) {
	sources, err := ResolveSources(patterns)
	if err != nil {
		return nil, err
	}
	outputs := make([]string, len(sources))
	byName := map[string]string{}
	for i, src := range sources {
		base := filepath.Base(src)
		if prev, dup := byName[base]; dup {
			return nil, fmt.Errorf("sources %s and %s map to the same output %s", prev, src, base)
		}
		byName[base] = src
		outputs[i] = filepath.Join(r.cfg.OutputDir, base)
		if samePath(src, outputs[i]) {
			return nil, fmt.Errorf("output %s would overwrite source %s", outputs[i], src)
		}
	}

	eng, err := r.Engine()
	if err != nil {
		return nil, err
	}

	res := &Result{Macros: len(eng.Catalog()), Files: make([]FileResult, len(sources))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Jobs, 1))
	for i := range sources {
		g.Go(func() error {
			st, err := eng.ProcessFile(gctx, sources[i], outputs[i])
			if err != nil {
				return err
			}
			fr := FileResult{Input: sources[i], Output: outputs[i], Stats: st}
			if r.cfg.Strip {
				sr, err := strip.File(outputs[i], outputs[i], r.logger)
				if err != nil {
					return err
				}
				fr.Stripped = sr.Functions
			}
			res.Files[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, f := range res.Files {
		res.Total.Add(f.Stats)
	}
	return res, nil
}
