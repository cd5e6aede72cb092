package livesearch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trackerd/trackerd/internal/query"
)

// NewSearch parses xml into SQL fragments and records a New-state search
// owned by sessionID (§4.6 "NewSearch(session, xml) -> search_id: parse
// xml -> fragments; record in New state.").
func (m *Manager) NewSearch(sessionID, xml string) (string, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return "", ErrUnknownSession
	}

	content, source, err := query.SniffRootClass(xml)
	if err != nil {
		return "", err
	}
	className := content
	if className == "" {
		className = source
	}
	schema := ""
	if className != "" {
		if st, ok := m.registry.ServiceByName(className); ok {
			schema = schemaForKind(st.DB)
		}
	}

	frag, err := query.TranslateForSchema(m.registry, xml, schema)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s := &search{id: id, sessionID: sessionID, xml: xml, schema: schema, frag: frag, state: StateNew}

	m.mu.Lock()
	m.searches[id] = s
	m.mu.Unlock()

	sess.mu.Lock()
	sess.searches[id] = struct{}{}
	sess.mu.Unlock()

	return id, nil
}

func (m *Manager) lookupSearch(id string) (*search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[id]
	if !ok {
		return nil, ErrUnknownSearch
	}
	return s, nil
}

// matchingIDs runs s's translated query (optionally restricted to a
// candidate id set) against the common handle, returning matched service
// ids. A nil restrictTo runs the unrestricted query (used by StartSearch);
// a non-nil, non-empty restrictTo scopes the scan to the touched ids a
// matching cycle is reconsidering.
func (m *Manager) matchingIDs(ctx context.Context, s *search, restrictTo []int64) ([]int64, error) {
	sqlText := "SELECT S.id FROM Services S"
	if s.frag.Join != "" {
		sqlText += " " + s.frag.Join
	}
	where := s.frag.Where
	args := append([]any{}, s.frag.Args...)
	if len(restrictTo) > 0 {
		placeholders := make([]byte, 0, len(restrictTo)*2)
		for i, id := range restrictTo {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}
		where = fmt.Sprintf("(%s) AND S.id IN (%s)", where, string(placeholders))
	}
	sqlText += " WHERE " + where

	res, err := m.common.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for res.Next() {
		ids = append(ids, res.Get(0).Int)
	}
	return ids, nil
}

// StartSearch materialises the initial match set and transitions the
// search to Active, emitting an initial HitsAdded if non-empty (§4.6
// "StartSearch(search_id)").
func (m *Manager) StartSearch(ctx context.Context, searchID string) error {
	s, err := m.lookupSearch(searchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSearchClosed
	}

	ids, err := m.matchingIDs(ctx, s, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.cache.ProcedureNoReply(ctx, procInsertHit, s.id, id); err != nil {
			return err
		}
	}
	s.state = StateActive

	if len(ids) > 0 {
		m.publish(Signal{SearchID: s.id, Kind: HitsAdded, Count: len(ids)})
	}
	return nil
}

// GetHitCount returns the current match count (§4.6 "GetHitCount").
func (m *Manager) GetHitCount(ctx context.Context, searchID string) (int, error) {
	s, err := m.lookupSearch(searchID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateActive {
		return 0, ErrNotActive
	}

	res, err := m.cache.Procedure(ctx, procCountHits, searchID)
	if err != nil {
		return 0, err
	}
	if !res.Next() {
		return 0, nil
	}
	return int(res.Get(0).Int), nil
}

// GetHits returns up to count ordered hit ids (§4.6 "GetHits").
func (m *Manager) GetHits(ctx context.Context, searchID string, count int) ([]int64, error) {
	s, err := m.lookupSearch(searchID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateActive {
		return nil, ErrNotActive
	}

	res, err := m.cache.Procedure(ctx, procListHits, searchID, count)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for res.Next() {
		ids = append(ids, res.Get(0).Int)
	}
	return ids, nil
}

// GetRangeHits returns the [a, b) ordered slice of hit ids (§4.6
// "GetRangeHits").
func (m *Manager) GetRangeHits(ctx context.Context, searchID string, a, b int) ([]int64, error) {
	s, err := m.lookupSearch(searchID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateActive {
		return nil, ErrNotActive
	}
	if b < a {
		b = a
	}

	res, err := m.cache.Procedure(ctx, procRangeHits, searchID, b-a, a)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for res.Next() {
		ids = append(ids, res.Get(0).Int)
	}
	return ids, nil
}

// HitData is one resolved hit's requested field values.
type HitData struct {
	Path string
	Name string
	Mime string
	Size int64
}

// GetHitData dereferences ids into field tuples. Ids that no longer
// resolve to a services row (e.g. removed since the caller last listed
// hits) are reported with ok=false rather than as an error (§4.6
// "unset fields for removed ids are reported as unset (not an error)").
func (m *Manager) GetHitData(ctx context.Context, searchID string, ids []int64) (map[int64]HitData, map[int64]bool, error) {
	if _, err := m.lookupSearch(searchID); err != nil {
		return nil, nil, err
	}

	data := make(map[int64]HitData, len(ids))
	ok := make(map[int64]bool, len(ids))
	for _, id := range ids {
		res, err := m.common.Query(ctx, `SELECT path, name, mime, size FROM services WHERE id = ?`, id)
		if err != nil {
			return nil, nil, err
		}
		if !res.Next() {
			ok[id] = false
			continue
		}
		data[id] = HitData{
			Path: res.Get(0).AsString(),
			Name: res.Get(1).AsString(),
			Mime: res.Get(2).AsString(),
			Size: res.Get(3).Int,
		}
		ok[id] = true
	}
	return data, ok, nil
}

// CloseSearch deletes the search's LiveSearches rows and transitions it
// to Closed (§4.6 "CloseSearch(search_id)").
func (m *Manager) CloseSearch(ctx context.Context, searchID string) error {
	s, err := m.lookupSearch(searchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	if err := m.cache.ProcedureNoReply(ctx, procDeleteSearch, searchID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.searches, searchID)
	sess, ok := m.sessions[s.sessionID]
	m.mu.Unlock()
	if ok {
		sess.mu.Lock()
		delete(sess.searches, searchID)
		sess.mu.Unlock()
	}
	return nil
}
