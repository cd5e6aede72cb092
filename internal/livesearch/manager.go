package livesearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
)

// debounceWindow is the matching cycle's coalescing window (§4.6
// "Matching cycle ... with a 2 s debounce").
const debounceWindow = 2 * time.Second

// eventType mirrors indexer.EventType's on-disk encoding without importing
// the indexer package — the event_log table is the only contract the two
// packages share.
type eventType int

const (
	eventCreate eventType = iota
	eventUpdate
	eventDelete
)

type handleRegistrar struct{ h *dbengine.Handle }

func (r handleRegistrar) Exec(ctx context.Context, sqlText string, args ...any) (interface {
	RowsAffected() (int64, error)
}, error) {
	return r.h.Exec(ctx, sqlText, args...)
}
func (r handleRegistrar) RegisterProcedure(name, sqlTemplate string) {
	r.h.RegisterProcedure(name, sqlTemplate)
}

// Manager owns every session and search, the debounced matching cycle,
// and the subscriber bus (§4.6).
type Manager struct {
	manager  *dbengine.Manager
	registry *ontology.Registry
	common   *dbengine.Handle
	cache    *dbengine.Handle

	mu       sync.Mutex
	sessions map[string]*session
	searches map[string]*search

	subMu       sync.Mutex
	subscribers map[string]*subscriber

	timerMu sync.Mutex
	timer   *time.Timer
	pending bool
}

type subscriber struct {
	ch       chan Signal
	sessions map[string]struct{}
}

// New wires a Manager against manager/registry, ATTACHing the file_meta
// and email_meta databases onto the common handle's single connection
// (as schemas "fm" and "em") so the matching cycle's re-joined WHERE
// clauses can resolve metadata_* tables living in a different SQLite
// file than Services (see query.TranslateForSchema).
func New(ctx context.Context, manager *dbengine.Manager, registry *ontology.Registry) (*Manager, error) {
	common := manager.Handle(dbengine.DBCommon)
	cache := manager.Handle(dbengine.DBCache)

	if err := registerSchema(ctx, handleRegistrar{cache}, handleRegistrar{common}); err != nil {
		return nil, fmt.Errorf("livesearch: schema: %w", err)
	}

	if _, err := common.Exec(ctx, fmt.Sprintf("ATTACH DATABASE %q AS fm", manager.Path(dbengine.DBFileMeta))); err != nil {
		return nil, fmt.Errorf("livesearch: attach file_meta: %w", err)
	}
	if _, err := common.Exec(ctx, fmt.Sprintf("ATTACH DATABASE %q AS em", manager.Path(dbengine.DBEmailMeta))); err != nil {
		return nil, fmt.Errorf("livesearch: attach email_meta: %w", err)
	}

	return &Manager{
		manager:     manager,
		registry:    registry,
		common:      common,
		cache:       cache,
		sessions:    make(map[string]*session),
		searches:    make(map[string]*search),
		subscribers: make(map[string]*subscriber),
	}, nil
}

// Subscribe registers a new bus subscriber and returns its signal channel
// and a detach function. Detaching closes every session the subscriber
// opened (§4.6 "If a subscriber drops off the bus, all sessions it owns
// are closed.").
func (m *Manager) Subscribe() (id string, signals <-chan Signal, detach func(ctx context.Context)) {
	id = uuid.NewString()
	sub := &subscriber{ch: make(chan Signal, 64), sessions: make(map[string]struct{})}

	m.subMu.Lock()
	m.subscribers[id] = sub
	m.subMu.Unlock()

	return id, sub.ch, func(ctx context.Context) {
		m.subMu.Lock()
		sub, ok := m.subscribers[id]
		delete(m.subscribers, id)
		m.subMu.Unlock()
		if !ok {
			return
		}
		for sid := range sub.sessions {
			_ = m.CloseSession(ctx, sid)
		}
		close(sub.ch)
	}
}

// ActiveSearchCount returns the number of open searches, for status
// reporting (§SPEC_FULL.md D).
func (m *Manager) ActiveSearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

func (m *Manager) publish(sig Signal) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- sig:
		default:
		}
	}
}

// schemaForKind maps a ServiceType's database to the attach alias the
// matching cycle's SQL fragments must be qualified with.
func schemaForKind(kind ontology.DBKind) string {
	switch kind {
	case ontology.DBFile:
		return "fm"
	case ontology.DBEmail:
		return "em"
	default:
		return ""
	}
}
