package crawler

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/trackerd/trackerd/internal/watcher"
)

// DirectoryWatcher is the live filesystem-change feed a Crawler can attach
// to one module's root with, so files and directories touched after the
// initial crawl get reprocessed without waiting for the next full reindex.
// *watcher.HybridWatcher satisfies this (fsnotify, falling back to polling);
// batched events let both backends share one seam.
type DirectoryWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan []watcher.FileEvent
	Errors() <-chan error
}

// Modules returns the crawler's configured module roster.
func (c *Crawler) Modules() []Module { return c.roster }

// Watch starts dw over module's first root and forwards every batched
// change event onto the crawler's file/directory queues. It blocks until
// ctx is cancelled or dw's event channel closes, so callers run it in its
// own goroutine alongside the Tick/Run scheduler loop.
func (c *Crawler) Watch(ctx context.Context, dw DirectoryWatcher, module Module) error {
	if len(module.Roots) == 0 {
		return nil
	}
	root, err := filepath.Abs(module.Roots[0])
	if err != nil {
		return err
	}
	if err := dw.Start(ctx, root); err != nil {
		return err
	}
	defer dw.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case events, ok := <-dw.Events():
			if !ok {
				return nil
			}
			for _, ev := range events {
				c.handleWatchEvent(module.Name, root, ev)
			}
		case err, ok := <-dw.Errors():
			if !ok {
				continue
			}
			slog.Warn("directory watcher error", slog.String("module", module.Name), slog.String("error", err.Error()))
		}
	}
}

// handleWatchEvent re-queues the path a change event names so the next
// scheduler ticks pick it up like any other discovered file or directory
// (§4.3's discovery protocol, extended with push-based change detection).
func (c *Crawler) handleWatchEvent(module, root string, ev watcher.FileEvent) {
	switch ev.Operation {
	case watcher.OpDelete:
		// No delete queue yet; the indexer's dud-removal path (§4.4)
		// reconciles rows the next time a search resolves them.
		return
	case watcher.OpGitignoreChange, watcher.OpConfigChange:
		// Re-expand the whole root: ignore rules changed, so previously
		// skipped (or now-skipped) children need reclassifying.
		c.DirQueue.Push(Item{Module: module, Path: root, IsDir: true})
		return
	}

	abs := ev.Path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, ev.Path)
	}
	if c.rules != nil && c.rules.ShouldIgnore(abs) {
		return
	}

	c.FileQueue.Push(Item{Module: module, Path: abs, IsDir: ev.IsDir})
	if ev.IsDir {
		c.DirQueue.Push(Item{Module: module, Path: abs, IsDir: true})
	}
}
