package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trackerd/trackerd/internal/livesearch"
	"github.com/trackerd/trackerd/internal/query"
	"github.com/trackerd/trackerd/pkg/version"
)

// Server is the §4.7 bus adapter: an MCP server exposing a small, fixed
// tool set forwarding into the query Engine and the live-search Manager.
type Server struct {
	mcp    *mcp.Server
	engine *query.Engine
	live   *livesearch.Manager
	logger *slog.Logger

	subscriberID string
	detach       func(ctx context.Context)
}

// NewServer wires a bus Server over engine and live. It subscribes to the
// live-search bus immediately — the subscription's lifetime is the
// server's own connection, so Close cascades CloseSession across every
// session this server opened (§4.7 "It owns name-watching so that death
// of a subscriber translates into CloseSession for their sessions.").
func NewServer(engine *query.Engine, live *livesearch.Manager, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("bus: query engine is required")
	}
	if live == nil {
		return nil, fmt.Errorf("bus: live-search manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	subID, _, detach := live.Subscribe()

	s := &Server{
		engine:       engine,
		live:         live,
		logger:       logger.With(slog.String("component", "bus")),
		subscriberID: subID,
		detach:       detach,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "trackerd",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the adapter over the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting bus adapter", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("bus adapter stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("bus adapter stopped")
		}
		return err
	default:
		return fmt.Errorf("bus: unknown transport %q (supported: stdio)", transport)
	}
}

// Close detaches from the live-search bus, closing every session this
// server's subscriber owns.
func (s *Server) Close(ctx context.Context) error {
	s.detach(ctx)
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "text_search",
		Description: "Tokenize text, expand service to its covered types, intersect token postings, and return ranked hits.",
	}, s.handleTextSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_text_mime",
		Description: "Text search filtered down to a set of mime types.",
	}, s.handleSearchTextMime)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_text_location",
		Description: "Text search filtered down to a path prefix.",
	}, s.handleSearchTextLocation)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_text_mime_location",
		Description: "Text search filtered by both mime type and path prefix.",
	}, s.handleSearchTextMimeLocation)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "snippet",
		Description: "Locate and highlight the first occurrence of any search term in a body of text.",
	}, s.handleSnippet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "open_session",
		Description: "Open a new live-search session owned by this connection.",
	}, s.handleOpenSession)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "close_session",
		Description: "Close a live-search session and every search it owns.",
	}, s.handleCloseSession)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "new_search",
		Description: "Parse a xesam XML query into SQL fragments and record a live search in the New state.",
	}, s.handleNewSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "start_search",
		Description: "Run a live search's initial match set and transition it to Active.",
	}, s.handleStartSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_hit_count",
		Description: "Read a live search's current match count. Errors if not Active.",
	}, s.handleGetHitCount)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_hits",
		Description: "Return up to count ordered hit ids for an Active live search.",
	}, s.handleGetHits)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_range_hits",
		Description: "Return the [from, to) ordered slice of hit ids for an Active live search.",
	}, s.handleGetRangeHits)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_hit_data",
		Description: "Dereference hit ids into path/name/mime/size tuples; removed ids are reported unset rather than erroring.",
	}, s.handleGetHitData)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "close_search",
		Description: "Close a live search and delete its recorded match set.",
	}, s.handleCloseSearch)

	s.logger.Info("bus tools registered", slog.Int("count", 13))
}
