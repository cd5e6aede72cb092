package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackerd/trackerd/internal/crawler"
	"github.com/trackerd/trackerd/internal/daemon"
	"github.com/trackerd/trackerd/internal/indexer"
	"github.com/trackerd/trackerd/internal/logging"
	"github.com/trackerd/trackerd/internal/output"
	"github.com/trackerd/trackerd/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: crawl, index, and serve the MCP bus",
		Long: `serve acquires the single-instance lock, starts the crawl/index scheduler
in the background, and serves the bus adapter (§4.7) over stdio.

Only one trackerd instance may run per cache directory at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", true, "Run in the foreground (stdio transport requires this)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.ErrOrStderr())
	dcfg := daemon.DefaultConfig()
	if err := dcfg.EnsureDir(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	lock := daemon.NewInstanceLock(dcfg.LockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if !acquired {
		return fmt.Errorf("serve: another trackerd instance already holds %s", dcfg.LockPath)
	}
	defer lock.Unlock()

	pidFile := daemon.NewPIDFile(dcfg.PIDPath)
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer pidFile.Remove()

	logCfg := logging.DefaultConfig()
	if !foreground {
		logCfg.WriteToStderr = false
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStack(ctx, logger)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer st.Close()

	out.Status("", fmt.Sprintf("PID %d, data dir %s", os.Getpid(), st.cfg.Databases.DataDir))

	tickInterval := time.Duration(st.cfg.Performance.TickInterval) * time.Millisecond
	if tickInterval <= 0 {
		tickInterval = 2 * time.Second
	}
	if st.cfg.Performance.InitialSleep > 0 {
		time.Sleep(time.Duration(st.cfg.Performance.InitialSleep) * time.Millisecond)
	}

	schedulerErr := make(chan error, 1)
	go func() {
		schedulerErr <- indexer.RunScheduler(ctx, st.indexer, st.crawler, tickInterval)
	}()

	startDirectoryWatchers(ctx, st.crawler, st.cfg.Paths.IgnoreGlobs)

	busServer, err := st.newBusServer(logger)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer busServer.Close(ctx)

	serveErr := busServer.Serve(ctx, st.cfg.Server.Transport)

	select {
	case err := <-schedulerErr:
		if err != nil && err != context.Canceled {
			slog.Warn("crawl scheduler stopped with error", slog.String("error", err.Error()))
		}
	default:
	}

	if serveErr != nil && serveErr != context.Canceled {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

// startDirectoryWatchers attaches one DirectoryWatcher per crawl module, so
// changes made after the initial crawl reach the file/directory queues
// without waiting for the next full reindex. Watcher failures are logged
// and otherwise ignored. The scheduler crawls each module once and then
// returns, so a module whose watcher can't start only picks up later
// changes on the next reindex.
func startDirectoryWatchers(ctx context.Context, cr *crawler.Crawler, ignoreGlobs []string) {
	opts := watcher.DefaultOptions()
	opts.IgnorePatterns = ignoreGlobs

	for _, mod := range cr.Modules() {
		mod := mod
		dw, err := watcher.NewHybridWatcher(opts)
		if err != nil {
			slog.Warn("directory watcher init failed", slog.String("module", mod.Name), slog.String("error", err.Error()))
			continue
		}
		go func() {
			if err := cr.Watch(ctx, dw, mod); err != nil && err != context.Canceled {
				slog.Warn("directory watcher stopped", slog.String("module", mod.Name), slog.String("error", err.Error()))
			}
		}()
	}
}
