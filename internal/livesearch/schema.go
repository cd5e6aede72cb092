package livesearch

import "context"

// liveSearchesSchemaSQL holds the per-search matched-id set (§4.6
// "LiveSearches table"). It lives in the cache database alongside
// search_results_1 — neither survives a restart and both are owned by the
// query-support side of the schema rather than the durable index.
const liveSearchesSchemaSQL = `
CREATE TABLE IF NOT EXISTS live_searches (
	search_id TEXT NOT NULL,
	service_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS live_searches_search ON live_searches (search_id);
CREATE INDEX IF NOT EXISTS live_searches_service ON live_searches (search_id, service_id);
`

const (
	procInsertHit      = "LiveSearchInsertHit"
	procDeleteSearch   = "LiveSearchDeleteBySearch"
	procDeleteHit      = "LiveSearchDeleteHit"
	procCountHits      = "LiveSearchCount"
	procListHits       = "LiveSearchList"
	procRangeHits      = "LiveSearchRange"
	procHasHit         = "LiveSearchHasHit"
	procSelectEvents   = "LiveSearchSelectEvents"
	procDeleteEventsTo = "LiveSearchDeleteEventsUpTo"
)

type procedureRegistrar interface {
	Exec(ctx context.Context, sqlText string, args ...any) (interface{ RowsAffected() (int64, error) }, error)
	RegisterProcedure(name, sqlTemplate string)
}

func registerSchema(ctx context.Context, cache, common procedureRegistrar) error {
	if _, err := cache.Exec(ctx, liveSearchesSchemaSQL); err != nil {
		return err
	}
	cache.RegisterProcedure(procInsertHit, `INSERT INTO live_searches (search_id, service_id) VALUES (?, ?)`)
	cache.RegisterProcedure(procDeleteSearch, `DELETE FROM live_searches WHERE search_id = ?`)
	cache.RegisterProcedure(procDeleteHit, `DELETE FROM live_searches WHERE search_id = ? AND service_id = ?`)
	cache.RegisterProcedure(procCountHits, `SELECT COUNT(*) FROM live_searches WHERE search_id = ?`)
	cache.RegisterProcedure(procListHits, `SELECT service_id FROM live_searches WHERE search_id = ? ORDER BY service_id LIMIT ?`)
	cache.RegisterProcedure(procRangeHits, `SELECT service_id FROM live_searches WHERE search_id = ? ORDER BY service_id LIMIT ? OFFSET ?`)
	cache.RegisterProcedure(procHasHit, `SELECT 1 FROM live_searches WHERE search_id = ? AND service_id = ?`)

	common.RegisterProcedure(procSelectEvents, `SELECT event_id, service_id, event_type FROM event_log ORDER BY event_id`)
	common.RegisterProcedure(procDeleteEventsTo, `DELETE FROM event_log WHERE event_id <= ?`)
	return nil
}
