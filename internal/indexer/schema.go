package indexer

import (
	"context"
	"fmt"
)

// keyMetadataProcName names the per-slot KeyMetadata update procedure
// (§3 "KeyMetadata1..11 columns").
func keyMetadataProcName(slot int) string {
	return fmt.Sprintf("IndexerSetKeyMetadata%d", slot)
}

// commonSchemaSQL creates the Services table, counters, per-type stats,
// event log, and embedded-metadata backup table (§3 "Service (row)",
// "Event log row"). It lives in the common database, alongside the
// ontology-independent bookkeeping tables.
const commonSchemaSQL = `
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	service_type_id INTEGER NOT NULL,
	mime TEXT,
	size INTEGER NOT NULL DEFAULT 0,
	is_dir INTEGER NOT NULL DEFAULT 0,
	is_link INTEGER NOT NULL DEFAULT 0,
	offset INTEGER NOT NULL DEFAULT 0,
	mtime INTEGER NOT NULL DEFAULT 0,
	aux_id INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	key_metadata1 TEXT, key_metadata2 TEXT, key_metadata3 TEXT, key_metadata4 TEXT,
	key_metadata5 TEXT, key_metadata6 TEXT, key_metadata7 TEXT, key_metadata8 TEXT,
	key_metadata9 TEXT, key_metadata10 TEXT, key_metadata11 TEXT,
	UNIQUE (path, name)
);
CREATE INDEX IF NOT EXISTS services_path ON services (path);
CREATE INDEX IF NOT EXISTS services_type ON services (service_type_id);

CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
INSERT OR IGNORE INTO counters (name, value) VALUES ('service_id', 0);
INSERT OR IGNORE INTO counters (name, value) VALUES ('event_id', 0);

CREATE TABLE IF NOT EXISTS service_type_stats (
	service_type_id INTEGER PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS event_log (
	event_id INTEGER PRIMARY KEY,
	service_id INTEGER NOT NULL,
	event_type INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS embedded_backup (
	service_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	value TEXT,
	PRIMARY KEY (service_id, field_id)
);
`

// metaSchemaSQL creates the per-kind metadata value tables (§3 "Metadata
// value rows"). It is applied to whichever metadata database a service
// type's DB kind resolves to (file_meta or email_meta).
const metaSchemaSQL = `
CREATE TABLE IF NOT EXISTS metadata_string (
	service_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	value TEXT
);
CREATE INDEX IF NOT EXISTS metadata_string_sf ON metadata_string (service_id, field_id);

CREATE TABLE IF NOT EXISTS metadata_numeric (
	service_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	value REAL
);
CREATE INDEX IF NOT EXISTS metadata_numeric_sf ON metadata_numeric (service_id, field_id);

CREATE TABLE IF NOT EXISTS metadata_keyword (
	service_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	value TEXT
);
CREATE INDEX IF NOT EXISTS metadata_keyword_sf ON metadata_keyword (service_id, field_id);

CREATE TABLE IF NOT EXISTS metadata_blob (
	service_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	value BLOB
);
CREATE INDEX IF NOT EXISTS metadata_blob_sf ON metadata_blob (service_id, field_id);
`

// contentSchemaSQL creates the content-blob table (§3 "Content blob").
const contentSchemaSQL = `
CREATE TABLE IF NOT EXISTS content_blob (
	service_id INTEGER PRIMARY KEY,
	field_id INTEGER NOT NULL,
	compressed BLOB NOT NULL
);
`

const (
	procNextCounter    = "IndexerNextCounter"
	procInsertService  = "IndexerInsertService"
	procUpdateService  = "IndexerUpdateService"
	procGetServiceByID = "IndexerGetServiceByID"
	procGetServiceByPath = "IndexerGetServiceByPath"
	procDeleteService  = "IndexerDeleteService"
	procDeleteByPrefix = "IndexerDeleteByPrefix"
	procMoveService    = "IndexerMoveService"
	procBumpTypeStat   = "IndexerBumpTypeStat"
	procAppendEvent    = "IndexerAppendEvent"

	procInsertMetaString  = "IndexerInsertMetaString"
	procInsertMetaNumeric = "IndexerInsertMetaNumeric"
	procInsertMetaKeyword = "IndexerInsertMetaKeyword"
	procInsertMetaBlob    = "IndexerInsertMetaBlob"
	procClearStringForField  = "IndexerClearStringForField"
	procClearNumericForField = "IndexerClearNumericForField"
	procClearKeywordForField = "IndexerClearKeywordForField"
	procClearBlobForField    = "IndexerClearBlobForField"
	procGetMetaValues        = "IndexerGetMetaValues"
	procGetAllStringForService  = "IndexerGetAllStringForService"
	procGetAllKeywordForService = "IndexerGetAllKeywordForService"
	procDeleteStringForService  = "IndexerDeleteStringForService"
	procDeleteNumericForService = "IndexerDeleteNumericForService"
	procDeleteKeywordForService = "IndexerDeleteKeywordForService"
	procDeleteBlobForService    = "IndexerDeleteBlobForService"

	procUpsertContentBlob = "IndexerUpsertContentBlob"
	procGetContentBlob    = "IndexerGetContentBlob"
	procDeleteContentBlob = "IndexerDeleteContentBlob"

	procUpsertBackup = "IndexerUpsertBackup"
	procDeleteBackup = "IndexerDeleteBackup"
)

func registerCommonProcedures(ctx context.Context, h procedureRegistrar) error {
	if _, err := h.Exec(ctx, commonSchemaSQL); err != nil {
		return err
	}
	h.RegisterProcedure(procNextCounter,
		`UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value`)
	h.RegisterProcedure(procInsertService,
		`INSERT INTO services (id, path, name, service_type_id, mime, size, is_dir, is_link, offset, mtime, aux_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	h.RegisterProcedure(procUpdateService,
		`UPDATE services SET mtime = ?, size = ? WHERE id = ?`)
	h.RegisterProcedure(procGetServiceByID,
		`SELECT id, path, name, service_type_id, mime, size, is_dir, is_link, offset, mtime, aux_id FROM services WHERE id = ?`)
	h.RegisterProcedure(procGetServiceByPath,
		`SELECT id, path, name, service_type_id, mime, size, is_dir, is_link, offset, mtime, aux_id FROM services WHERE path = ? AND name = ?`)
	h.RegisterProcedure(procDeleteService,
		`DELETE FROM services WHERE id = ?`)
	h.RegisterProcedure(procDeleteByPrefix,
		`SELECT id FROM services WHERE path = ? OR path LIKE ? ESCAPE '\'`)
	h.RegisterProcedure(procMoveService,
		`UPDATE services SET path = ?, name = ? WHERE id = ?`)
	h.RegisterProcedure(procBumpTypeStat,
		`INSERT INTO service_type_stats (service_type_id, count) VALUES (?, ?)
		 ON CONFLICT(service_type_id) DO UPDATE SET count = count + excluded.count`)
	h.RegisterProcedure(procAppendEvent,
		`INSERT INTO event_log (event_id, service_id, event_type) VALUES (?, ?, ?)`)
	for slot := 1; slot <= 11; slot++ {
		col := fmt.Sprintf("key_metadata%d", slot)
		h.RegisterProcedure(keyMetadataProcName(slot), fmt.Sprintf(`UPDATE services SET %s = ? WHERE id = ?`, col))
	}
	h.RegisterProcedure(procUpsertBackup,
		`INSERT INTO embedded_backup (service_id, field_id, value) VALUES (?, ?, ?)
		 ON CONFLICT(service_id, field_id) DO UPDATE SET value = excluded.value`)
	h.RegisterProcedure(procDeleteBackup,
		`DELETE FROM embedded_backup WHERE service_id = ?`)
	return nil
}

func registerMetaProcedures(ctx context.Context, h procedureRegistrar) error {
	if _, err := h.Exec(ctx, metaSchemaSQL); err != nil {
		return err
	}
	h.RegisterProcedure(procInsertMetaString, `INSERT INTO metadata_string (service_id, field_id, value) VALUES (?, ?, ?)`)
	h.RegisterProcedure(procInsertMetaNumeric, `INSERT INTO metadata_numeric (service_id, field_id, value) VALUES (?, ?, ?)`)
	h.RegisterProcedure(procInsertMetaKeyword, `INSERT INTO metadata_keyword (service_id, field_id, value) VALUES (?, ?, ?)`)
	h.RegisterProcedure(procInsertMetaBlob, `INSERT INTO metadata_blob (service_id, field_id, value) VALUES (?, ?, ?)`)
	h.RegisterProcedure(procGetMetaValues, `SELECT value FROM metadata_string WHERE service_id = ? AND field_id = ?`)
	h.RegisterProcedure(procGetAllStringForService, `SELECT field_id, value FROM metadata_string WHERE service_id = ?`)
	h.RegisterProcedure(procGetAllKeywordForService, `SELECT field_id, value FROM metadata_keyword WHERE service_id = ?`)
	h.RegisterProcedure(procClearStringForField, `DELETE FROM metadata_string WHERE service_id = ? AND field_id = ?`)
	h.RegisterProcedure(procClearNumericForField, `DELETE FROM metadata_numeric WHERE service_id = ? AND field_id = ?`)
	h.RegisterProcedure(procClearKeywordForField, `DELETE FROM metadata_keyword WHERE service_id = ? AND field_id = ?`)
	h.RegisterProcedure(procClearBlobForField, `DELETE FROM metadata_blob WHERE service_id = ? AND field_id = ?`)
	h.RegisterProcedure(procDeleteStringForService, `DELETE FROM metadata_string WHERE service_id = ?`)
	h.RegisterProcedure(procDeleteNumericForService, `DELETE FROM metadata_numeric WHERE service_id = ?`)
	h.RegisterProcedure(procDeleteKeywordForService, `DELETE FROM metadata_keyword WHERE service_id = ?`)
	h.RegisterProcedure(procDeleteBlobForService, `DELETE FROM metadata_blob WHERE service_id = ?`)
	return nil
}

func registerContentProcedures(ctx context.Context, h procedureRegistrar) error {
	if _, err := h.Exec(ctx, contentSchemaSQL); err != nil {
		return err
	}
	h.RegisterProcedure(procUpsertContentBlob,
		`INSERT INTO content_blob (service_id, field_id, compressed) VALUES (?, ?, ?)
		 ON CONFLICT(service_id) DO UPDATE SET compressed = excluded.compressed, field_id = excluded.field_id`)
	h.RegisterProcedure(procGetContentBlob,
		`SELECT compressed FROM content_blob WHERE service_id = ?`)
	h.RegisterProcedure(procDeleteContentBlob,
		`DELETE FROM content_blob WHERE service_id = ?`)
	return nil
}
