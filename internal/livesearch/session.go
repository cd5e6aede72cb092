package livesearch

import (
	"context"

	"github.com/google/uuid"
)

// OpenSession creates a session owned by subscriberID, returning its id
// (§4.6 "Session lifecycle. A session is an umbrella for searches,
// identified by a unique id.").
func (m *Manager) OpenSession(subscriberID string) (string, error) {
	m.subMu.Lock()
	sub, ok := m.subscribers[subscriberID]
	m.subMu.Unlock()
	if !ok {
		return "", ErrUnknownSession
	}

	id := uuid.NewString()
	sess := &session{id: id, searches: make(map[string]struct{})}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.subMu.Lock()
	sub.sessions[id] = struct{}{}
	m.subMu.Unlock()

	return id, nil
}

// CloseSession closes every search the session owns, then forgets it
// (§4.6 "Closing a session implicitly closes all its searches.").
func (m *Manager) CloseSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	sess.mu.Lock()
	ids := make([]string, 0, len(sess.searches))
	for id := range sess.searches {
		ids = append(ids, id)
	}
	sess.mu.Unlock()

	for _, id := range ids {
		_ = m.CloseSearch(ctx, id)
	}
	return nil
}
