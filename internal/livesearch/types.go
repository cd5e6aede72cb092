package livesearch

import (
	"errors"
	"sync"

	"github.com/trackerd/trackerd/internal/query"
)

// State is a search's lifecycle stage (§4.6 "Per-search state").
type State int

const (
	StateNew State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownSession = errors.New("livesearch: unknown session")
	ErrUnknownSearch  = errors.New("livesearch: unknown search")
	ErrSearchClosed   = errors.New("livesearch: search closed")
	ErrNotActive      = errors.New("livesearch: search not active")
)

// search is one standing Xesam query (§4.6 "Per-search state": search_id,
// xml, from_sql, join_sql, where_sql, state).
type search struct {
	mu sync.Mutex

	id        string
	sessionID string
	xml       string
	schema    string // "fm"/"em"/"" — which attached metadata schema the fragments are qualified against
	frag      *query.Translation
	state     State
}

// session is an umbrella of searches, identified by a unique id (§4.6
// "Session lifecycle").
type session struct {
	mu       sync.Mutex
	id       string
	searches map[string]struct{}
}

// Signal is one of HitsAdded/HitsRemoved/HitsModified for a given search
// (§4.6 "emit the corresponding signal ... on the subscriber bus").
type Signal struct {
	SearchID string
	Kind     SignalKind
	Count    int     // HitsAdded
	IDs      []int64 // HitsRemoved / HitsModified
}

type SignalKind int

const (
	HitsAdded SignalKind = iota
	HitsRemoved
	HitsModified
)
