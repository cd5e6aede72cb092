// Package indexer is the state machine of §4.3: it consumes the
// crawler's discovered paths, extracts metadata, and commits rows,
// word-index deltas, content blobs, and event-log entries.
package indexer

import (
	"context"
	"io"
)

// EventType mirrors §3's "Event log row" event_type enum.
type EventType int

const (
	EventCreate EventType = iota
	EventUpdate
	EventDelete
)

// ExtractedMetadata is what a MetadataExtractor yields for one path: a
// field-name -> values map (multi-valued fields carry more than one
// entry) plus optional full text for the content pipeline.
type ExtractedMetadata struct {
	Fields   map[string][]string
	FullText io.Reader
}

// MetadataExtractor is the out-of-core collaborator named in the
// purpose/scope section: given a path and the module it was discovered
// under, it yields a metadata map and optional full text. Per-format
// parsers (mail stores, document formats, ...) implement this.
type MetadataExtractor interface {
	Extract(ctx context.Context, module, path string, isDir bool) (*ExtractedMetadata, error)
}
