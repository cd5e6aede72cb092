// Package query is the Query Engine of §4.5: text search over the word
// index, mime/location-filtered variants, snippet generation, and the
// Xesam XML -> SQL translator.
package query

import "fmt"

// Hit is one resolved search result row.
type Hit struct {
	ServiceID     int64
	ServiceTypeID int
	Path          string
	Name          string
	Score         int
}

// SearchOptions are the text search contract's inputs (§4.5 "Text search
// contract").
type SearchOptions struct {
	Service     string
	Text        string
	Offset      int
	Limit       int
	SaveResults bool
	Detailed    bool
}

// DefaultLimit and MaxLimit bound the paginated result window ("limit
// defaults to 1024 and is clamped to >= 1").
const (
	DefaultLimit = 1024
	MaxLimit     = 1024
)

func (o SearchOptions) normalized() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// UnknownServiceError is returned when a search names a service the
// ontology registry has no record of.
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("query: unknown service %q", e.Service)
}
