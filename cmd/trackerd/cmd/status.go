package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackerd/trackerd/internal/daemon"
	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, noColor bool) error {
	logger := slog.Default()

	st, err := openStack(ctx, logger)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer st.Close()

	wordCount, err := st.indexer.FileWordIndex().Count(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	emailWordCount, err := st.indexer.EmailWordIndex().Count(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	dcfg := daemon.DefaultConfig()
	pidFile := daemon.NewPIDFile(dcfg.PIDPath)
	daemonStatus := "stopped"
	pid := 0
	if pidFile.IsRunning() {
		daemonStatus = "running"
		pid, _ = pidFile.Read()
	}

	crawlerStage := "idle"
	if st.indexer.Running() {
		crawlerStage = "crawling"
	}

	info := ui.StatusInfo{
		RootLabel:     st.cfg.Databases.DataDir,
		TotalServices: st.registry.ServiceCount(),
		TotalWords:    wordCount + emailWordCount,
		LastIndexed:   lastIndexedTime(st.cfg.Databases.DataDir),
		CommonSize:    dbFileSize(st.manager, dbengine.DBCommon),
		WordIndexSize: dbFileSize(st.manager, dbengine.DBFileContents) + dbFileSize(st.manager, dbengine.DBEmailContents),
		ContentSize:   dbFileSize(st.manager, dbengine.DBFileMeta) + dbFileSize(st.manager, dbengine.DBEmailMeta),
		CrawlerStage:  crawlerStage,
		DaemonStatus:  daemonStatus,
		PID:           pid,
		LiveSearches:  st.live.ActiveSearchCount(),
	}
	info.TotalSize = info.CommonSize + info.WordIndexSize + info.ContentSize

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func dbFileSize(manager *dbengine.Manager, name string) int64 {
	path := manager.Path(name)
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func lastIndexedTime(dataDir string) time.Time {
	fi, err := os.Stat(dataDir)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
