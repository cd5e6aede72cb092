package dbengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/trackerd/trackerd/internal/config"
)

// Manager owns the canonical set of databases (§4.2 "Database set":
// common, cache, file-meta, file-contents, email-meta, email-contents,
// xesam) and their worker pools.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	pools   map[string]*Pool
	paths   map[string]string

	onAbort func(db string, err error)
}

const (
	DBCommon        = "common"
	DBCache         = "cache"
	DBFileMeta      = "file_meta"
	DBFileContents  = "file_contents"
	DBEmailMeta     = "email_meta"
	DBEmailContents = "email_contents"
	DBXesam         = "xesam"
)

// allDatabases lists the canonical set in deterministic open order.
var allDatabases = []string{
	DBCommon, DBCache, DBFileMeta, DBFileContents, DBEmailMeta, DBEmailContents, DBXesam,
}

// OpenManager opens every database named in allDatabases under
// cfg.Databases.DataDir, tuned per cfg.Databases' per-db profile, and
// starts one Pool per handle. onAbort fires when a task run through any of
// these pools reports SQLITE_CORRUPT; calls made directly on a Handle do
// not trigger it. The caller is expected to treat this as fatal (§4.2).
func OpenManager(ctx context.Context, cfg config.DatabasesConfig, lowMemory bool, registry ServiceResolver, onAbort func(db string, err error)) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("dbengine: create data dir: %w", err)
	}

	m := &Manager{
		handles: make(map[string]*Handle, len(allDatabases)),
		pools:   make(map[string]*Pool, len(allDatabases)),
		paths:   make(map[string]string, len(allDatabases)),
		onAbort: onAbort,
	}

	tunings := map[string]config.DBTuning{
		DBCommon:        cfg.Common,
		DBCache:         cfg.Cache,
		DBFileMeta:      cfg.FileMeta,
		DBFileContents:  cfg.FileContents,
		DBEmailMeta:     cfg.EmailMeta,
		DBEmailContents: cfg.EmailContents,
		DBXesam:         cfg.Xesam,
	}

	for _, name := range allDatabases {
		path := filepath.Join(cfg.DataDir, name+".db")
		tuning := tunings[name]

		h, err := Open(ctx, name, path, tuning, lowMemory, registry)
		if err != nil {
			m.closeAll()
			return nil, fmt.Errorf("dbengine: open %s: %w", name, err)
		}
		m.handles[name] = h
		m.paths[name] = path

		wrappedAbort := func(db string, err error) {
			if m.onAbort != nil {
				m.onAbort(db, err)
			}
		}
		m.pools[name] = NewPool(h, 0, wrappedAbort)
	}

	return m, nil
}

// Handle returns the raw handle for name (for direct procedure calls, as
// the indexer makes, and for transactions), or nil if name isn't a known
// database.
func (m *Manager) Handle(name string) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[name]
}

// Path returns the on-disk file path of the named database, for callers
// (the Xesam translator) that need to ATTACH one database file onto
// another handle's connection to join across the per-kind database split.
func (m *Manager) Path(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths[name]
}

// Pool returns the worker pool fronting name, or nil if name isn't a
// known database.
func (m *Manager) Pool(name string) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[name]
}

// RegisterProcedure adds a named procedure's SQL template to the given
// database's handle.
func (m *Manager) RegisterProcedure(db, name, sqlTemplate string) error {
	h := m.Handle(db)
	if h == nil {
		return fmt.Errorf("dbengine: unknown database %q", db)
	}
	h.RegisterProcedure(name, sqlTemplate)
	return nil
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.pools {
		p.Close()
		delete(m.pools, name)
	}
	for name, h := range m.handles {
		_ = h.Close()
		delete(m.handles, name)
	}
}

// Close shuts down every pool and handle.
func (m *Manager) Close() error {
	m.closeAll()
	return nil
}
