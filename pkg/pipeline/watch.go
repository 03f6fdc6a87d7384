package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a rebuild starts.
const DefaultDebounce = 200 * time.Millisecond

// WatchOptions configure Watch.
type WatchOptions struct {
	// Dir is watched recursively.
	Dir string
	// Ignore lists directories whose events are dropped, typically the output
	// directory. Hidden directories are always ignored.
	Ignore []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	Logger   *log.Logger
}

// Watch calls rebuild with the changed paths, in sorted order, after file
// activity under opts.Dir settles. It blocks until ctx is done and returns
// nil on cancellation. rebuild runs on the watch goroutine, so changes made
// while it runs are batched into the next call.
func Watch(ctx context.Context, opts WatchOptions, rebuild func(ctx context.Context, changed []string)) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	ignored := make([]string, 0, len(opts.Ignore))
	for _, dir := range opts.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			ignored = append(ignored, abs)
		}
	}
	skip := func(p string) bool {
		if strings.HasPrefix(filepath.Base(p), ".") && p != opts.Dir {
			return true
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return false
		}
		for _, dir := range ignored {
			if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}

	addTree := func(root string) error {
		return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if skip(p) {
				return filepath.SkipDir
			}
			return w.Add(p)
		})
	}
	if err := addTree(opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", opts.Dir, err)
	}
	opts.Logger.Info("watching for changes", "dir", opts.Dir)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if skip(ev.Name) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(ev.Name); err != nil {
						opts.Logger.Warn("cannot watch directory", "dir", ev.Name, "err", err)
					}
				}
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(opts.Debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", "err", err)

		case <-timerC:
			timer, timerC = nil, nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			opts.Logger.Debug("rebuilding", "changes", len(changed))
			rebuild(ctx, changed)
		}
	}
}
