package livesearch

import (
	"context"
	"time"
)

// Notify schedules a matching cycle after the debounce window unless one
// is already pending (§4.6 "Triggered on each new event, with a 2 s
// debounce (no second cycle starts while one is in flight; at most one
// cycle is pending)."). The indexer calls this via SetEventNotifier after
// every event-log append.
func (m *Manager) Notify() {
	m.timerMu.Lock()
	if m.pending {
		m.timerMu.Unlock()
		return
	}
	m.pending = true
	m.timerMu.Unlock()

	m.timer = time.AfterFunc(debounceWindow, m.fireCycle)
}

func (m *Manager) fireCycle() {
	ctx := context.Background()
	more, _ := m.runCycle(ctx)

	m.timerMu.Lock()
	m.pending = false
	m.timerMu.Unlock()

	if more {
		m.Notify()
	}
}

// runCycle implements one matching pass (§4.6 "Matching cycle"). It
// returns more=true if new event rows arrived while this pass was
// executing, so the caller can schedule an immediate follow-up rather
// than wait for the next externally-triggered Notify.
func (m *Manager) runCycle(ctx context.Context) (more bool, err error) {
	res, err := m.common.Procedure(ctx, procSelectEvents)
	if err != nil {
		return false, err
	}
	if res.NRows() == 0 {
		return false, nil
	}

	var maxEventID int64
	touched := make(map[int64]eventType)
	for res.Next() {
		eventID := res.Get(0).Int
		serviceID := res.Get(1).Int
		kind := eventType(res.Get(2).Int)
		if eventID > maxEventID {
			maxEventID = eventID
		}
		// A service touched more than once in a cycle keeps its last
		// observed event kind, except Delete always wins — a row that
		// was created and then deleted in the same cycle is a delete.
		if prev, ok := touched[serviceID]; !ok || kind == eventDelete || prev != eventDelete {
			touched[serviceID] = kind
		}
	}

	m.mu.Lock()
	active := make([]*search, 0, len(m.searches))
	for _, s := range m.searches {
		s.mu.Lock()
		if s.state == StateActive {
			active = append(active, s)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, s := range active {
		if err := m.matchSearch(ctx, s, touched); err != nil {
			return false, err
		}
	}

	if err := m.common.ProcedureNoReply(ctx, procDeleteEventsTo, maxEventID); err != nil {
		return false, err
	}

	checkRes, err := m.common.Procedure(ctx, procSelectEvents)
	if err != nil {
		return false, err
	}
	return checkRes.NRows() > 0, nil
}

// matchSearch computes the removed/modified/added sets for one search
// over this cycle's touched ids and applies them, in that order (§4.6
// "Ordering guarantee: ... removed -> modified -> added").
func (m *Manager) matchSearch(ctx context.Context, s *search, touched map[int64]eventType) error {
	var deletedIDs, changedIDs []int64
	for id, kind := range touched {
		if kind == eventDelete {
			deletedIDs = append(deletedIDs, id)
		} else {
			changedIDs = append(changedIDs, id)
		}
	}

	previouslyIn, err := m.idsPresent(ctx, s.id, append(append([]int64{}, deletedIDs...), changedIDs...))
	if err != nil {
		return err
	}

	var removed []int64
	for _, id := range deletedIDs {
		if previouslyIn[id] {
			removed = append(removed, id)
		}
	}

	var matchedNow map[int64]bool
	if len(changedIDs) > 0 {
		ids, err := m.matchingIDs(ctx, s, changedIDs)
		if err != nil {
			return err
		}
		matchedNow = make(map[int64]bool, len(ids))
		for _, id := range ids {
			matchedNow[id] = true
		}
	}

	var added, modified, stale []int64
	for _, id := range changedIDs {
		matches := matchedNow[id]
		was := previouslyIn[id]
		switch {
		case matches && !was:
			added = append(added, id)
		case matches && was && touched[id] == eventUpdate:
			modified = append(modified, id)
		case !matches && was:
			stale = append(stale, id)
		}
	}

	for _, id := range removed {
		if err := m.cache.ProcedureNoReply(ctx, procDeleteHit, s.id, id); err != nil {
			return err
		}
	}
	for _, id := range stale {
		if err := m.cache.ProcedureNoReply(ctx, procDeleteHit, s.id, id); err != nil {
			return err
		}
	}
	for _, id := range added {
		if err := m.cache.ProcedureNoReply(ctx, procInsertHit, s.id, id); err != nil {
			return err
		}
	}

	if len(removed) > 0 {
		m.publish(Signal{SearchID: s.id, Kind: HitsRemoved, IDs: removed})
	}
	if len(modified) > 0 {
		m.publish(Signal{SearchID: s.id, Kind: HitsModified, IDs: modified})
	}
	if len(added) > 0 {
		m.publish(Signal{SearchID: s.id, Kind: HitsAdded, Count: len(added)})
	}
	return nil
}

// idsPresent reports which of ids are currently recorded as matches of
// search searchID, read once up front so removed/modified/added are all
// computed against a consistent snapshot.
func (m *Manager) idsPresent(ctx context.Context, searchID string, ids []int64) (map[int64]bool, error) {
	present := make(map[int64]bool, len(ids))
	for _, id := range ids {
		res, err := m.cache.Procedure(ctx, procHasHit, searchID, id)
		if err != nil {
			return nil, err
		}
		present[id] = res.NRows() > 0
	}
	return present, nil
}
