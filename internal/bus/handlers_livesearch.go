package bus

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleOpenSession(ctx context.Context, _ *mcp.CallToolRequest, _ OpenSessionInput) (*mcp.CallToolResult, OpenSessionOutput, error) {
	id, err := s.live.OpenSession(s.subscriberID)
	if err != nil {
		return nil, OpenSessionOutput{}, mapError(err)
	}
	return nil, OpenSessionOutput{SessionID: id}, nil
}

func (s *Server) handleCloseSession(ctx context.Context, _ *mcp.CallToolRequest, in CloseSessionInput) (*mcp.CallToolResult, OKOutput, error) {
	if in.SessionID == "" {
		return nil, OKOutput{}, newInvalidParamsError("session_id parameter is required")
	}
	if err := s.live.CloseSession(ctx, in.SessionID); err != nil {
		return nil, OKOutput{}, mapError(err)
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleNewSearch(ctx context.Context, _ *mcp.CallToolRequest, in NewSearchInput) (*mcp.CallToolResult, NewSearchOutput, error) {
	if in.Query == "" {
		return nil, NewSearchOutput{}, newInvalidParamsError("query parameter is required")
	}
	id, err := s.live.NewSearch(in.SessionID, in.Query)
	if err != nil {
		return nil, NewSearchOutput{}, mapError(err)
	}
	return nil, NewSearchOutput{SearchID: id}, nil
}

func (s *Server) handleStartSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchIDInput) (*mcp.CallToolResult, OKOutput, error) {
	if err := s.live.StartSearch(ctx, in.SearchID); err != nil {
		return nil, OKOutput{}, mapError(err)
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleGetHitCount(ctx context.Context, _ *mcp.CallToolRequest, in SearchIDInput) (*mcp.CallToolResult, HitCountOutput, error) {
	count, err := s.live.GetHitCount(ctx, in.SearchID)
	if err != nil {
		return nil, HitCountOutput{}, mapError(err)
	}
	return nil, HitCountOutput{Count: count}, nil
}

func (s *Server) handleGetHits(ctx context.Context, _ *mcp.CallToolRequest, in GetHitsInput) (*mcp.CallToolResult, HitIDsOutput, error) {
	ids, err := s.live.GetHits(ctx, in.SearchID, in.Count)
	if err != nil {
		return nil, HitIDsOutput{}, mapError(err)
	}
	return nil, HitIDsOutput{IDs: ids}, nil
}

func (s *Server) handleGetRangeHits(ctx context.Context, _ *mcp.CallToolRequest, in GetRangeHitsInput) (*mcp.CallToolResult, HitIDsOutput, error) {
	ids, err := s.live.GetRangeHits(ctx, in.SearchID, in.From, in.To)
	if err != nil {
		return nil, HitIDsOutput{}, mapError(err)
	}
	return nil, HitIDsOutput{IDs: ids}, nil
}

func (s *Server) handleGetHitData(ctx context.Context, _ *mcp.CallToolRequest, in GetHitDataInput) (*mcp.CallToolResult, GetHitDataOutput, error) {
	data, ok, err := s.live.GetHitData(ctx, in.SearchID, in.IDs)
	if err != nil {
		return nil, GetHitDataOutput{}, mapError(err)
	}
	entries := make([]HitDataEntry, 0, len(in.IDs))
	for _, id := range in.IDs {
		if !ok[id] {
			entries = append(entries, HitDataEntry{ID: id, Set: false})
			continue
		}
		d := data[id]
		entries = append(entries, HitDataEntry{
			ID: id, Set: true,
			Path: d.Path, Name: d.Name, Mime: d.Mime, Size: d.Size,
		})
	}
	return nil, GetHitDataOutput{Entries: entries}, nil
}

func (s *Server) handleCloseSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchIDInput) (*mcp.CallToolResult, OKOutput, error) {
	if err := s.live.CloseSearch(ctx, in.SearchID); err != nil {
		return nil, OKOutput{}, mapError(err)
	}
	return nil, OKOutput{OK: true}, nil
}
