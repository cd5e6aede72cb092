package indexer

import (
	"context"
	"os"
	"time"

	"github.com/trackerd/trackerd/internal/crawler"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

// pendingFilesBatch is the §4.3 "batching to the indexer" cap: a tick
// drains at most this many items from the crawler's file queue.
const pendingFilesBatch = 5000

// RunScheduler drives the crawler's cooperative scheduler (§4.3
// "Scheduler (worker loop)") and, on each tick interval, drains up to
// pendingFilesBatch discoveries into Commit — but only while the indexer
// reports itself running; otherwise the tick backs off without draining
// (§4.3 "Batching to the indexer").
func RunScheduler(ctx context.Context, ix *Indexer, cr *crawler.Crawler, tick time.Duration) error {
	ix.SetRunning(true)
	defer ix.SetRunning(false)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !ix.Running() {
				continue
			}
			for drained := 0; drained < pendingFilesBatch; drained++ {
				done, err := cr.Tick(ctx, ix.onCrawlerFile)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}
	}
}

// onCrawlerFile is the crawler.FileHandler the scheduler wires in.
func (ix *Indexer) onCrawlerFile(ctx context.Context, module, path string, info os.FileInfo) error {
	if delay := textpipeline.ThrottleDelay(ix.throttle); delay > 0 {
		time.Sleep(delay)
	}
	return ix.Commit(ctx, module, path, info.IsDir(), info.ModTime(), info.Size())
}
