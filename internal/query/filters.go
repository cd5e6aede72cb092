package query

import (
	"context"
	"strings"
	"time"
)

// candidateCap bounds how many ranked candidates the mime/location
// filters scan before giving up (§4.5 "fetches up to ~2048 row candidates
// from the inverted index").
const candidateCap = 2048

// SearchTextMime filters text's hits down to rows whose mime is in mimes.
func (e *Engine) SearchTextMime(ctx context.Context, text string, mimes []string) ([]Hit, error) {
	start := time.Now()
	hits, err := e.searchFiltered(ctx, text, func(row serviceRow) bool {
		return mimeMatches(row.Mime, mimes)
	})
	if err == nil {
		e.recordQuery(text, hits, start)
	}
	return hits, err
}

// SearchTextLocation filters text's hits down to rows under location.
func (e *Engine) SearchTextLocation(ctx context.Context, text, location string) ([]Hit, error) {
	start := time.Now()
	hits, err := e.searchFiltered(ctx, text, func(row serviceRow) bool {
		return locationMatches(row, location)
	})
	if err == nil {
		e.recordQuery(text, hits, start)
	}
	return hits, err
}

// SearchTextMimeLocation applies both filters together.
func (e *Engine) SearchTextMimeLocation(ctx context.Context, text string, mimes []string, location string) ([]Hit, error) {
	start := time.Now()
	hits, err := e.searchFiltered(ctx, text, func(row serviceRow) bool {
		return locationMatches(row, location) && mimeMatches(row.Mime, mimes)
	})
	if err == nil {
		e.recordQuery(text, hits, start)
	}
	return hits, err
}

func mimeMatches(mime string, mimes []string) bool {
	for _, m := range mimes {
		if mime == m {
			return true
		}
	}
	return false
}

func locationMatches(row serviceRow, location string) bool {
	full := joinPath(row.Path, row.Name)
	return full == location || strings.HasPrefix(full, location+"/")
}

func (e *Engine) searchFiltered(ctx context.Context, text string, keep func(serviceRow) bool) ([]Hit, error) {
	ix, err := e.intersect(ctx, text, nil)
	if err != nil {
		return nil, err
	}

	ids := ix.ids
	if len(ids) > candidateCap {
		ids = ids[:candidateCap]
	}

	var hits []Hit
	var duds []int
	for _, sid := range ids {
		typeID := ix.typeOf[sid]
		row, ok, err := e.fetchRow(ctx, typeID, sid, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			duds = append(duds, int(sid))
			continue
		}
		if !keep(row) {
			continue
		}
		hits = append(hits, Hit{
			ServiceID:     sid,
			ServiceTypeID: typeID,
			Path:          row.Path,
			Name:          row.Name,
			Score:         ix.scores[sid],
		})
	}

	if err := e.removeDuds(ctx, duds); err != nil {
		return nil, err
	}
	return hits, nil
}
