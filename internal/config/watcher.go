package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileKind identifies which home-directory file changed.
type FileKind int

const (
	FileConfig FileKind = iota + 1
	FilePolicy
)

func (k FileKind) String() string {
	switch k {
	case FileConfig:
		return "config"
	case FilePolicy:
		return "policy"
	default:
		return "unknown"
	}
}

var watchedFiles = map[string]FileKind{
	"config.yaml": FileConfig,
	"policy.yaml": FilePolicy,
}

type ReloadEvent struct {
	Kind FileKind
	Path string
}

// Watcher reports settled edits to config.yaml and policy.yaml. Editors
// often emit several writes per save, so each file is reported once after
// it has been quiet for the debounce window, or after maxWait when writes
// never stop.
type Watcher struct {
	homeDir  string
	debounce time.Duration
	maxWait  time.Duration
	logger   *slog.Logger
	events   chan ReloadEvent
}

func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		homeDir:  homeDir,
		debounce: 200 * time.Millisecond,
		maxWait:  time.Second,
		logger:   logger,
		events:   make(chan ReloadEvent, 4),
	}
}

// Events is closed when the watcher stops.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start watches the directory rather than the files so a file created
// after startup, or swapped in by rename, is still seen.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.homeDir); err != nil {
		return errors.Join(err, fsw.Close())
	}
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.events)
	defer fsw.Close()

	pending := make(map[FileKind]string)
	var firstPending time.Time
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			kind, watched := watchedFiles[filepath.Base(ev.Name)]
			if !watched || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			now := time.Now()
			if len(pending) == 0 {
				firstPending = now
			}
			pending[kind] = ev.Name
			timer.Reset(w.flushDelay(firstPending, now))
		case <-timer.C:
			for kind, path := range pending {
				w.logger.Info("home file changed", "kind", kind.String(), "path", path)
				select {
				case w.events <- ReloadEvent{Kind: kind, Path: path}:
				default:
					w.logger.Warn("reload event dropped", "kind", kind.String())
				}
			}
			clear(pending)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("home watcher error", "error", err)
		}
	}
}

// flushDelay is the debounce window, cut short so a pending batch is never
// held past maxWait from its first event.
func (w *Watcher) flushDelay(first, now time.Time) time.Duration {
	return max(0, min(w.debounce, first.Add(w.maxWait).Sub(now)))
}
