package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FileHandler is invoked once per discovered file (process-file, §4.3). It
// receives the owning module name, the file's absolute path, and its
// os.FileInfo; the indexer wires this up to metadata extraction + commit.
type FileHandler func(ctx context.Context, module, path string, info os.FileInfo) error

// defaultDirConcurrency bounds how many directory children are stat'd
// concurrently while expanding one directory queue entry.
const defaultDirConcurrency = 8

// Crawler drives the file-queue/directory-queue/module-roster scheduler
// described in §4.3: file work always drains before directory work, and
// directory work always drains before a new module starts.
type Crawler struct {
	FileQueue *Queue
	DirQueue  *Queue

	rules  *Rules
	roster []Module
	cursor int

	dirSem *semaphore.Weighted

	started  time.Time
	statsTot Stats
}

// New creates a Crawler over the given module roster. queueCapacity bounds
// both queues (0 = unbounded).
func New(roster []Module, rules *Rules, queueCapacity int) *Crawler {
	return &Crawler{
		FileQueue: NewQueue(queueCapacity),
		DirQueue:  NewQueue(queueCapacity),
		rules:     rules,
		roster:    roster,
		dirSem:    semaphore.NewWeighted(defaultDirConcurrency),
	}
}

// Stats returns a snapshot of the crawl counters.
func (c *Crawler) Stats() Stats {
	s := c.statsTot
	if !c.started.IsZero() {
		s.Elapsed = time.Since(c.started)
	}
	return s
}

// Tick executes one step of the scheduler state machine. done reports
// whether the module roster has been fully drained (the "finished" signal
// of §4.3's step 3).
func (c *Crawler) Tick(ctx context.Context, onFile FileHandler) (done bool, err error) {
	if c.started.IsZero() {
		c.started = time.Now()
	}

	if it, ok := c.FileQueue.Pop(); ok {
		return false, c.processFile(ctx, it, onFile)
	}

	if it, ok := c.DirQueue.Pop(); ok {
		return false, c.processDirectory(ctx, it)
	}

	if c.cursor >= len(c.roster) {
		return true, nil
	}

	mod := c.roster[c.cursor]
	c.cursor++
	for _, root := range mod.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		c.DirQueue.Push(Item{Module: mod.Name, Path: abs, IsDir: true})
	}
	return false, nil
}

// Run drives Tick to completion, yielding to ctx between every item so the
// crawler never monopolizes the scheduling loop it shares with the indexer
// and the live-search matcher (§SPEC_FULL "cooperative worker" note).
func (c *Crawler) Run(ctx context.Context, onFile FileHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := c.Tick(ctx, onFile)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (c *Crawler) processFile(ctx context.Context, it Item, onFile FileHandler) error {
	info, err := os.Lstat(it.Path)
	if err != nil {
		c.statsTot.FilesIgnored++
		return nil
	}
	if onFile == nil {
		return nil
	}
	if err := onFile(ctx, it.Module, it.Path, info); err != nil {
		return fmt.Errorf("crawler: process %s: %w", it.Path, err)
	}
	c.statsTot.FilesFound++
	return nil
}

// processDirectory expands one directory queue entry: every child is
// classified and, unless ignored, pushed onto the file queue (so it gets a
// metadata record) and, if it is itself a directory, also onto the
// directory queue for later recursion (§4.3 "Discovery protocol").
func (c *Crawler) processDirectory(ctx context.Context, it Item) error {
	entries, err := os.ReadDir(it.Path)
	if err != nil {
		return nil
	}
	c.statsTot.DirsFound++

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		entry := entry
		childPath := filepath.Join(it.Path, entry.Name())
		if c.rules != nil && c.rules.ShouldIgnore(childPath) {
			c.statsTot.FilesIgnored++
			continue
		}

		if err := c.dirSem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer c.dirSem.Release(1)
			isDir := entry.IsDir()
			if d, err := entry.Info(); err == nil {
				isDir = d.IsDir()
			}
			c.FileQueue.Push(Item{Module: it.Module, Path: childPath, IsDir: isDir})
			if isDir {
				c.DirQueue.Push(Item{Module: it.Module, Path: childPath, IsDir: true})
			}
			return nil
		})
	}
	return g.Wait()
}
