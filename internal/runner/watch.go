package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events an editor save produces.
const debounce = 150 * time.Millisecond

// Watch runs the batch once, then again whenever a header or source
// changes, until ctx is done. onRun sees every outcome; a failed run does
// not stop the watch.
func (r *Runner) Watch(ctx context.Context, patterns []string, onRun func(*Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched, err := r.watchTargets(watcher, patterns)
	if err != nil {
		return err
	}

	onRun(r.Run(ctx, patterns))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			onRun(r.Run(ctx, patterns))
		}
	}
}

// watchTargets watches the directories holding the headers and sources,
// since editors often replace a file rather than write it in place.
func (r *Runner) watchTargets(watcher *fsnotify.Watcher, patterns []string) (map[string]bool, error) {
	sources, err := ResolveSources(patterns)
	if err != nil {
		return nil, err
	}
	watched := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range append(append([]string{}, r.cfg.Headers...), sources...) {
		p = filepath.Clean(p)
		watched[p] = true
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return watched, nil
}
