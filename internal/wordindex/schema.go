package wordindex

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS hit_index (
	token TEXT NOT NULL,
	service_id INTEGER NOT NULL,
	service_type_id INTEGER NOT NULL,
	score INTEGER NOT NULL,
	PRIMARY KEY (token, service_id)
);
CREATE INDEX IF NOT EXISTS hit_index_token ON hit_index (token);
CREATE INDEX IF NOT EXISTS hit_index_service ON hit_index (service_id);
`

const (
	procUpsertPosting   = "WordIndexUpsertPosting"
	procAddScore        = "WordIndexAddScore"
	procDropPosting     = "WordIndexDropPosting"
	procLookupToken     = "WordIndexLookupToken"
	procDropService     = "WordIndexDropService"
	procDistinctTokens  = "WordIndexDistinctTokens"
	procGetPostingScore = "WordIndexGetPostingScore"
)

func (idx *Index) initSchema(ctx context.Context) error {
	if _, err := idx.handle.Exec(ctx, schemaSQL); err != nil {
		return err
	}

	idx.handle.RegisterProcedure(procUpsertPosting,
		`INSERT INTO hit_index (token, service_id, service_type_id, score) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token, service_id) DO UPDATE SET score = excluded.score, service_type_id = excluded.service_type_id`)
	idx.handle.RegisterProcedure(procAddScore,
		`INSERT INTO hit_index (token, service_id, service_type_id, score) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token, service_id) DO UPDATE SET score = score + excluded.score`)
	idx.handle.RegisterProcedure(procDropPosting,
		`DELETE FROM hit_index WHERE token = ? AND service_id = ?`)
	idx.handle.RegisterProcedure(procLookupToken,
		`SELECT service_id, service_type_id, score FROM hit_index WHERE token = ?`)
	idx.handle.RegisterProcedure(procDropService,
		`DELETE FROM hit_index WHERE service_id = ?`)
	idx.handle.RegisterProcedure(procDistinctTokens,
		`SELECT DISTINCT token FROM hit_index ORDER BY token`)
	idx.handle.RegisterProcedure(procGetPostingScore,
		`SELECT score FROM hit_index WHERE token = ? AND service_id = ?`)

	return nil
}
