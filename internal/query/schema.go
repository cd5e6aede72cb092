package query

import "context"

// searchResultsSchemaSQL creates the ephemeral saved-results table (§4.5
// step 6, "clear and repopulate a SearchResults1 table"). It lives in the
// cache database — the one member of the canonical set with no durable
// content of its own.
const searchResultsSchemaSQL = `
CREATE TABLE IF NOT EXISTS search_results_1 (
	service_id INTEGER NOT NULL,
	rank INTEGER NOT NULL
);
`

const (
	// Per-service row fetchers (§4.5 step 4). The schema keeps one
	// Services table regardless of service kind, so all four share one
	// query; GetFileByID2 is the detailed-path variant callers use when
	// a disk-existence check must gate the hit.
	procGetFileByID        = "QueryGetFileByID"
	procGetFileByID2       = "QueryGetFileByID2"
	procGetEmailByID       = "QueryGetEmailByID"
	procGetApplicationByID = "QueryGetApplicationByID"
)

type procedureRegistrar interface {
	Exec(ctx context.Context, sqlText string, args ...any) (interface{ RowsAffected() (int64, error) }, error)
	RegisterProcedure(name, sqlTemplate string)
}

func registerRowFetchers(h procedureRegistrar) {
	const rowSQL = `SELECT id, path, name, service_type_id, mime, size, mtime FROM services WHERE id = ?`
	h.RegisterProcedure(procGetFileByID, rowSQL)
	h.RegisterProcedure(procGetFileByID2, rowSQL)
	h.RegisterProcedure(procGetEmailByID, rowSQL)
	h.RegisterProcedure(procGetApplicationByID, rowSQL)
}

func registerSearchResultsSchema(ctx context.Context, h procedureRegistrar) error {
	_, err := h.Exec(ctx, searchResultsSchemaSQL)
	return err
}
