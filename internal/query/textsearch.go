package query

import (
	"context"
	"time"

	"github.com/trackerd/trackerd/internal/dbengine"
)

// TextSearch implements §4.5's "Text search contract": tokenize, expand
// the requested service to its covered type ids, intersect token postings,
// resolve each hit's row, drop duds, and optionally save the result set.
func (e *Engine) TextSearch(ctx context.Context, opts SearchOptions) ([]Hit, error) {
	start := time.Now()
	opts = opts.normalized()

	typeIDs := expandService(e.registry, opts.Service)
	if len(typeIDs) == 0 {
		return nil, &UnknownServiceError{Service: opts.Service}
	}
	typeFilter := make(map[int]struct{}, len(typeIDs))
	for _, id := range typeIDs {
		typeFilter[id] = struct{}{}
	}

	ix, err := e.intersect(ctx, opts.Text, typeFilter)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	var duds []int
	for _, sid := range ix.ids {
		typeID := ix.typeOf[sid]
		row, ok, err := e.fetchRow(ctx, typeID, sid, opts.Detailed)
		if err != nil {
			return nil, err
		}
		if !ok {
			duds = append(duds, int(sid))
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

	hits = paginate(hits, opts.Offset, opts.Limit)

	if opts.SaveResults {
		if err := e.saveResults(ctx, hits); err != nil {
			return nil, err
		}
	}
	e.recordQuery(opts.Text, hits, start)
	return hits, nil
}

func paginate(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return nil
	}
	hits = hits[offset:]
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}

// saveResults clears and repopulates search_results_1 inside a transaction
// (§4.5 step 6).
func (e *Engine) saveResults(ctx context.Context, hits []Hit) error {
	cache := e.manager.Handle(dbengine.DBCache)
	tx, err := cache.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_results_1`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO search_results_1 (service_id, rank) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, h := range hits {
		if _, err := stmt.ExecContext(ctx, h.ServiceID, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}
