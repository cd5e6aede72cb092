package dbengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // registers the "sqlite" driver used when AddFunctions is false

	"github.com/trackerd/trackerd/internal/config"
)

// statementCacheSize bounds the per-handle prepared-statement cache
// (§4.2 "Statement cache"), grounded on the crawler/scanner's LRU-cached
// gitignore matcher sizing convention.
const statementCacheSize = 256

// Handle is bound to exactly one SQLite file (§4.2 "DB Interface").
type Handle struct {
	db   *sql.DB
	name string

	mu    sync.RWMutex
	stmts *lru.Cache[string, *sql.Stmt]

	procMu     sync.RWMutex
	procedures map[string]string
}

// Open opens name at path with the given tuning profile. When
// tuning.AddFunctions is set, the mattn/go-sqlite3 (cgo) driver is used so
// the built-in user functions (§4.2) can be registered; otherwise the pure
// Go modernc.org/sqlite driver is used.
func Open(ctx context.Context, name, path string, tuning config.DBTuning, lowMemory bool, registry ServiceResolver) (*Handle, error) {
	driver := "sqlite"
	if tuning.AddFunctions {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbengine: open %s (%s): %w", name, driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts, err := lru.New[string, *sql.Stmt](statementCacheSize)
	if err != nil {
		return nil, fmt.Errorf("dbengine: statement cache: %w", err)
	}

	h := &Handle{
		db:         db,
		name:       name,
		stmts:      stmts,
		procedures: make(map[string]string),
	}

	if err := h.applyPragmas(ctx, tuning, lowMemory); err != nil {
		_ = db.Close()
		return nil, err
	}

	if tuning.AddFunctions {
		conn, err := db.Conn(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		err = conn.Raw(func(driverConn any) error {
			return registerBuiltinFunctions(driverConn, registry)
		})
		_ = conn.Close()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dbengine: register functions on %s: %w", name, err)
		}
	}

	return h, nil
}

// applyPragmas sets the §4.2 "Tuning profile" pragmas. Cache size halves
// under the low-memory flag (§6).
func (h *Handle) applyPragmas(ctx context.Context, tuning config.DBTuning, lowMemory bool) error {
	cacheSize := tuning.EffectiveCacheSizePages(lowMemory)
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = FILE",
		"PRAGMA auto_vacuum = NONE",
	}
	if tuning.PageSizeBytes > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA page_size = %d", tuning.PageSizeBytes))
	}
	if cacheSize > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = %d", cacheSize))
	}
	for _, p := range pragmas {
		if _, err := h.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("dbengine: pragma %q on %s: %w", p, h.name, err)
		}
	}
	return nil
}

// RegisterProcedure adds name -> sqlTemplate to this handle's procedure
// table (§4.2 "Procedure: named key into a shared procedure table").
func (h *Handle) RegisterProcedure(name, sqlTemplate string) {
	h.procMu.Lock()
	defer h.procMu.Unlock()
	h.procedures[name] = sqlTemplate
}

func (h *Handle) procedureSQL(name string) (string, bool) {
	h.procMu.RLock()
	defer h.procMu.RUnlock()
	sqlText, ok := h.procedures[name]
	return sqlText, ok
}

// Query executes ad-hoc SQL text. Ad-hoc statements are never cached
// (§4.2 "Ad-hoc queries are not cached").
func (h *Handle) Query(ctx context.Context, sqlText string, args ...any) (*Result, error) {
	rows, err := h.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return newResult(rows)
}

// Exec executes ad-hoc SQL with no result set (inserts/updates/DDL).
func (h *Handle) Exec(ctx context.Context, sqlText string, args ...any) (sql.Result, error) {
	return h.db.ExecContext(ctx, sqlText, args...)
}

// Procedure runs a named procedure, preparing (or reusing a cached
// prepared statement for) its SQL template, and returns the materialized
// result set.
func (h *Handle) Procedure(ctx context.Context, name string, args ...any) (*Result, error) {
	stmt, err := h.preparedStatement(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return newResult(rows)
}

// ProcedureNoReply runs a named procedure and discards the result set
// (§4.2 "Procedure no-reply").
func (h *Handle) ProcedureNoReply(ctx context.Context, name string, args ...any) error {
	stmt, err := h.preparedStatement(ctx, name)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, args...)
	return err
}

func (h *Handle) preparedStatement(ctx context.Context, name string) (*sql.Stmt, error) {
	h.mu.RLock()
	if stmt, ok := h.stmts.Get(name); ok {
		h.mu.RUnlock()
		return stmt, nil
	}
	h.mu.RUnlock()

	sqlText, ok := h.procedureSQL(name)
	if !ok {
		return nil, fmt.Errorf("dbengine: no such procedure %q on %s", name, h.name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if stmt, ok := h.stmts.Get(name); ok {
		return stmt, nil
	}
	stmt, err := h.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("dbengine: prepare %q: %w", name, err)
	}
	if evicted, ok, _ := h.stmts.PeekOrAdd(name, stmt); ok {
		_ = evicted.Close()
	}
	return stmt, nil
}

// Begin starts a transaction on this handle (used for the query engine's
// SearchResults1 population).
func (h *Handle) Begin(ctx context.Context) (*sql.Tx, error) {
	return h.db.BeginTx(ctx, nil)
}

// Close releases the underlying database connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range h.stmts.Keys() {
		if stmt, ok := h.stmts.Get(key); ok {
			_ = stmt.Close()
		}
	}
	return h.db.Close()
}

// Name returns the handle's configured database name (e.g. "file_meta").
func (h *Handle) Name() string { return h.name }

// DB returns the underlying *sql.DB, for callers (like Begin's *sql.Tx
// already does) that need to hand the connection to a library built
// against database/sql directly rather than this handle's Query/Exec/
// Procedure surface.
func (h *Handle) DB() *sql.DB { return h.db }

// IsBusyError reports whether err indicates SQLITE_BUSY from either driver
// (mattn/go-sqlite3 returns a typed error; modernc.org/sqlite surfaces the
// message string), used by the worker pool's retry path.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// IsCorruptError reports whether err indicates SQLITE_CORRUPT.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "corrupt")
}
