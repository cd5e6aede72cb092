package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trackerd/trackerd/internal/output"
)

func newQueryCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <xesam-xml>",
		Short: "Run a one-shot Xesam query through the live-search pipeline",
		Long: `query opens a throwaway live-search session, submits <xesam-xml> as a
new search, starts it, drains every hit, and tears the session back down
(§4.6's OpenSession/NewSearch/StartSearch/GetHits/CloseSearch/CloseSession
sequence, run once instead of left open for live updates).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, xesamXML string, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	logger := slog.Default()

	st, err := openStack(ctx, logger)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer st.Close()

	subscriberID, _, detach := st.live.Subscribe()
	defer detach(ctx)

	sessionID, err := st.live.OpenSession(subscriberID)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer st.live.CloseSession(ctx, sessionID)

	searchID, err := st.live.NewSearch(sessionID, xesamXML)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer st.live.CloseSearch(ctx, searchID)

	if err := st.live.StartSearch(ctx, searchID); err != nil {
		return fmt.Errorf("query: %w", err)
	}

	count, err := st.live.GetHitCount(ctx, searchID)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	ids, err := st.live.GetHits(ctx, searchID, count)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ids)
	}

	if len(ids) == 0 {
		out.Status("", "no matches")
		return nil
	}
	for _, id := range ids {
		out.Status("", fmt.Sprintf("service %d", id))
	}
	return nil
}
