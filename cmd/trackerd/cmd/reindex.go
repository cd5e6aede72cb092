package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackerd/trackerd/internal/indexer"
	"github.com/trackerd/trackerd/internal/output"
)

func newReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Run one full crawl-and-index pass and exit",
		Long: `reindex drives the crawler to completion against the configured roots,
committing every discovered path through the indexer, then exits. Unlike
serve, it does not open the bus adapter and does not loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	logger := slog.Default()

	st, err := openStack(ctx, logger)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	defer st.Close()

	out.Status("", fmt.Sprintf("crawling %d root(s)", len(st.cfg.Paths.CrawlRoots)))

	tickInterval := time.Duration(st.cfg.Performance.TickInterval) * time.Millisecond
	if tickInterval <= 0 {
		tickInterval = 2 * time.Second
	}

	start := time.Now()
	if err := indexer.RunScheduler(ctx, st.indexer, st.crawler, tickInterval); err != nil && err != context.Canceled {
		return fmt.Errorf("reindex: %w", err)
	}

	stats := st.crawler.Stats()
	out.Success(fmt.Sprintf(
		"indexed %d file(s), %d director(y/ies), %d ignored in %s",
		stats.FilesFound, stats.DirsFound, stats.FilesIgnored, time.Since(start).Round(time.Millisecond),
	))
	return nil
}
