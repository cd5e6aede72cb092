package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trackerd/trackerd/internal/output"
	"github.com/trackerd/trackerd/internal/query"
)

func newSearchCmd() *cobra.Command {
	var service string
	var mimes string
	var location string
	var limit int
	var offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Run a one-shot text search against the indexed content",
		Long: `search tokenizes <text> and resolves it against the word index for
--service (default "Files"), optionally narrowed by --mime and/or
--location (§4.5 "Text search contract" and its mime/location-filtered
variants).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], service, mimes, location, limit, offset, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&service, "service", "Files", "ServiceType name to search")
	cmd.Flags().StringVar(&mimes, "mime", "", "Comma-separated MIME filter")
	cmd.Flags().StringVar(&location, "location", "", "Path prefix filter")
	cmd.Flags().IntVar(&limit, "limit", query.DefaultLimit, "Maximum hits to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Hit offset for pagination")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, text, service, mimes, location string, limit, offset int, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	logger := slog.Default()

	st, err := openStack(ctx, logger)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer st.Close()

	var hits []query.Hit
	switch {
	case mimes != "" && location != "":
		hits, err = st.engine.SearchTextMimeLocation(ctx, text, strings.Split(mimes, ","), location)
	case mimes != "":
		hits, err = st.engine.SearchTextMime(ctx, text, strings.Split(mimes, ","))
	case location != "":
		hits, err = st.engine.SearchTextLocation(ctx, text, location)
	default:
		hits, err = st.engine.TextSearch(ctx, query.SearchOptions{
			Service: service,
			Text:    text,
			Offset:  offset,
			Limit:   limit,
		})
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		out.Status("", "no matches")
		return nil
	}
	for _, h := range hits {
		out.Status("", fmt.Sprintf("%s  (score %d)", h.Path, h.Score))
	}
	return nil
}
