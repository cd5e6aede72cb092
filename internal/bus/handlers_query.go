package bus

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trackerd/trackerd/internal/query"
)

func toHitOutputs(hits []query.Hit) []HitOutput {
	out := make([]HitOutput, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitOutput{
			ServiceID:     h.ServiceID,
			ServiceTypeID: h.ServiceTypeID,
			Path:          h.Path,
			Name:          h.Name,
			Score:         h.Score,
		})
	}
	return out
}

func (s *Server) handleTextSearch(ctx context.Context, _ *mcp.CallToolRequest, in TextSearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Text == "" {
		return nil, SearchOutput{}, newInvalidParamsError("text parameter is required")
	}
	hits, err := s.engine.TextSearch(ctx, query.SearchOptions{
		Service:     in.Service,
		Text:        in.Text,
		Offset:      in.Offset,
		Limit:       in.Limit,
		SaveResults: in.SaveResults,
		Detailed:    in.Detailed,
	})
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, SearchOutput{Hits: toHitOutputs(hits)}, nil
}

func (s *Server) handleSearchTextMime(ctx context.Context, _ *mcp.CallToolRequest, in SearchTextMimeInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Text == "" {
		return nil, SearchOutput{}, newInvalidParamsError("text parameter is required")
	}
	hits, err := s.engine.SearchTextMime(ctx, in.Text, in.Mimes)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, SearchOutput{Hits: toHitOutputs(hits)}, nil
}

func (s *Server) handleSearchTextLocation(ctx context.Context, _ *mcp.CallToolRequest, in SearchTextLocationInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Text == "" {
		return nil, SearchOutput{}, newInvalidParamsError("text parameter is required")
	}
	hits, err := s.engine.SearchTextLocation(ctx, in.Text, in.Location)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, SearchOutput{Hits: toHitOutputs(hits)}, nil
}

func (s *Server) handleSearchTextMimeLocation(ctx context.Context, _ *mcp.CallToolRequest, in SearchTextMimeLocationInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Text == "" {
		return nil, SearchOutput{}, newInvalidParamsError("text parameter is required")
	}
	hits, err := s.engine.SearchTextMimeLocation(ctx, in.Text, in.Mimes, in.Location)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, SearchOutput{Hits: toHitOutputs(hits)}, nil
}

func (s *Server) handleSnippet(_ context.Context, _ *mcp.CallToolRequest, in SnippetInput) (*mcp.CallToolResult, SnippetOutput, error) {
	return nil, SnippetOutput{Snippet: query.Snippet(in.Text, in.Terms)}, nil
}
