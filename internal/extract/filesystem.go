// Package extract provides the default MetadataExtractor (§4.3 "Per-format
// metadata extractors") the daemon wires into the indexer: a filesystem
// extractor that stats a path and, for text-ish MIME types, reads its
// content for the full-text pipeline. Richer format-specific extractors
// (mail stores, document parsers) implement the same trait and can replace
// or chain in front of this one; this package only covers the bytes every
// file already carries.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/trackerd/trackerd/internal/indexer"
	"github.com/trackerd/trackerd/internal/ontology"
)

// Filesystem extracts File:* metadata (§C's files.description fields) from
// disk: path, name, MIME, size, mtime, and — for text-ish MIME types — the
// decoded content, bounded by MaxTextBytes.
type Filesystem struct {
	// MaxTextBytes caps how much of a file is read into FullText; larger
	// files are truncated rather than skipped. Zero means DefaultMaxTextBytes.
	MaxTextBytes int64
}

// DefaultMaxTextBytes bounds full-text reads to a few megabytes so a
// pathological file can't stall the indexer's single-writer commit loop.
const DefaultMaxTextBytes = 4 * 1024 * 1024

// New returns a Filesystem extractor with DefaultMaxTextBytes.
func New() *Filesystem {
	return &Filesystem{MaxTextBytes: DefaultMaxTextBytes}
}

var _ indexer.MetadataExtractor = (*Filesystem)(nil)

// Extract implements indexer.MetadataExtractor.
func (f *Filesystem) Extract(ctx context.Context, module, path string, isDir bool) (*indexer.ExtractedMetadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("extract: stat %s: %w", path, err)
	}

	mime := "inode/directory"
	if !isDir {
		mime = ontology.GuessMimeFromPath(path)
	}

	dir, name := filepath.Dir(path), filepath.Base(path)
	fields := map[string][]string{
		"File:Path": {dir},
		"File:Name": {name},
		"File:Mime": {mime},
		"File:Size": {strconv.FormatInt(info.Size(), 10)},
		"File:Modified": {info.ModTime().UTC().Format(time.RFC3339)},
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			fields["File:Link"] = []string{target}
		}
	}

	extracted := &indexer.ExtractedMetadata{Fields: fields}

	if !isDir && isTextMime(mime) {
		text, err := f.readText(path)
		if err != nil {
			return nil, fmt.Errorf("extract: read %s: %w", path, err)
		}
		if text != nil {
			extracted.FullText = text
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return extracted, nil
}

func (f *Filesystem) readText(path string) (io.Reader, error) {
	limit := f.MaxTextBytes
	if limit <= 0 {
		limit = DefaultMaxTextBytes
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

// isTextMime reports whether mime is full-text-pipeline eligible: anything
// under text/, plus the handful of structured formats the ontology's
// Development/Text ServiceTypes name (§C files.description).
func isTextMime(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/xml", "application/x-sh":
		return true
	}
	return false
}
