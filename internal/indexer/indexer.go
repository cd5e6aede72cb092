package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trackerd/trackerd/internal/config"
	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/textpipeline"
	"github.com/trackerd/trackerd/internal/wordindex"
)

// procedureRegistrar is the subset of *dbengine.Handle schema setup needs.
type procedureRegistrar interface {
	Exec(ctx context.Context, sqlText string, args ...any) (interface{ RowsAffected() (int64, error) }, error)
	RegisterProcedure(name, sqlTemplate string)
}

// handleRegistrar adapts *dbengine.Handle to procedureRegistrar (Exec's
// concrete sql.Result already satisfies the narrow interface above).
type handleRegistrar struct{ h *dbengine.Handle }

func (r handleRegistrar) Exec(ctx context.Context, sqlText string, args ...any) (interface {
	RowsAffected() (int64, error)
}, error) {
	return r.h.Exec(ctx, sqlText, args...)
}
func (r handleRegistrar) RegisterProcedure(name, sqlTemplate string) {
	r.h.RegisterProcedure(name, sqlTemplate)
}

// Indexer is the commit-side state machine of §4.3: it receives
// (module, path) discoveries from the crawler, extracts metadata via a
// MetadataExtractor, and writes rows, word-index deltas, content blobs,
// and event-log entries across the database set.
type Indexer struct {
	manager   *dbengine.Manager
	registry  *ontology.Registry
	extractor MetadataExtractor
	tokenize  textpipeline.TokenizeOptions
	throttle  int

	fileWords  *wordindex.Index
	emailWords *wordindex.Index

	running bool

	onEvent func()
}

// SetEventNotifier registers fn to be called synchronously after every
// event-log row append (Commit/Update/Delete/Move). The live-search
// matcher uses this to trigger its debounced matching cycle (§4.6
// "Triggered on each new event") without the indexer importing it.
func (ix *Indexer) SetEventNotifier(fn func()) {
	ix.onEvent = fn
}

// New wires an Indexer against the database set in manager, extracting
// via extractor and tokenizing per tokenize.
func New(ctx context.Context, manager *dbengine.Manager, registry *ontology.Registry, extractor MetadataExtractor, tokenize textpipeline.TokenizeOptions, throttle int) (*Indexer, error) {
	if err := registerCommonProcedures(ctx, handleRegistrar{manager.Handle(dbengine.DBCommon)}); err != nil {
		return nil, fmt.Errorf("indexer: common schema: %w", err)
	}
	if err := registerMetaProcedures(ctx, handleRegistrar{manager.Handle(dbengine.DBFileMeta)}); err != nil {
		return nil, fmt.Errorf("indexer: file-meta schema: %w", err)
	}
	if err := registerMetaProcedures(ctx, handleRegistrar{manager.Handle(dbengine.DBEmailMeta)}); err != nil {
		return nil, fmt.Errorf("indexer: email-meta schema: %w", err)
	}
	if err := registerContentProcedures(ctx, handleRegistrar{manager.Handle(dbengine.DBFileContents)}); err != nil {
		return nil, fmt.Errorf("indexer: file-contents schema: %w", err)
	}
	if err := registerContentProcedures(ctx, handleRegistrar{manager.Handle(dbengine.DBEmailContents)}); err != nil {
		return nil, fmt.Errorf("indexer: email-contents schema: %w", err)
	}

	fileWords, err := wordindex.New(ctx, manager.Handle(dbengine.DBFileContents))
	if err != nil {
		return nil, err
	}
	emailWords, err := wordindex.New(ctx, manager.Handle(dbengine.DBEmailContents))
	if err != nil {
		return nil, err
	}

	return &Indexer{
		manager:    manager,
		registry:   registry,
		extractor:  extractor,
		tokenize:   tokenize,
		throttle:   throttle,
		fileWords:  fileWords,
		emailWords: emailWords,
	}, nil
}

// Running reports whether the indexer is actively processing, consulted
// by the crawler's pending-files batch drain before it pulls work
// (§4.3 "it first asks the indexer whether it is running").
func (ix *Indexer) Running() bool { return ix.running }

// SetRunning flips the running flag.
func (ix *Indexer) SetRunning(running bool) { ix.running = running }

// FileWordIndex returns the word index bound to file_contents, shared with
// the query engine and live-search matcher so there is one postings table
// per content database rather than one per subsystem.
func (ix *Indexer) FileWordIndex() *wordindex.Index { return ix.fileWords }

// EmailWordIndex returns the word index bound to email_contents.
func (ix *Indexer) EmailWordIndex() *wordindex.Index { return ix.emailWords }

// Manager exposes the database manager the indexer was wired against.
func (ix *Indexer) Manager() *dbengine.Manager { return ix.manager }

// Registry exposes the ontology registry the indexer resolves service
// types against.
func (ix *Indexer) Registry() *ontology.Registry { return ix.registry }

// wordIndexFor returns the word index backing a service type's DB kind.
func (ix *Indexer) wordIndexFor(kind ontology.DBKind) *wordindex.Index {
	if kind == "email" {
		return ix.emailWords
	}
	return ix.fileWords
}

// metaHandleFor returns the metadata-table handle for a service type's
// DB kind. "data" and "xesam" service types share the file metadata
// tables — neither needs a dedicated schema of its own.
func (ix *Indexer) metaHandleFor(kind ontology.DBKind) *dbengine.Handle {
	if kind == "email" {
		return ix.manager.Handle(dbengine.DBEmailMeta)
	}
	return ix.manager.Handle(dbengine.DBFileMeta)
}

func (ix *Indexer) contentHandleFor(kind ontology.DBKind) *dbengine.Handle {
	if kind == "email" {
		return ix.manager.Handle(dbengine.DBEmailContents)
	}
	return ix.manager.Handle(dbengine.DBFileContents)
}

// resolveServiceType guesses a MIME type for path (directories get a
// synthetic "inode/directory" MIME) and maps it to a ServiceType via the
// ontology registry.
func (ix *Indexer) resolveServiceType(path string, isDir bool) (*ontology.ServiceType, string) {
	mime := "application/octet-stream"
	if isDir {
		mime = "inode/directory"
	} else {
		mime = ontology.GuessMimeFromPath(path)
	}
	name := ix.registry.MimeToService(mime)
	st, ok := ix.registry.ServiceByName(name)
	if !ok {
		st, _ = ix.registry.ServiceByName("Other")
	}
	return st, mime
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func baseAndDir(path string) (dir, name string) {
	return filepath.Dir(path), filepath.Base(path)
}

// Config-derived tokenizer options per field could vary; trackerd uses a
// single pipeline-wide profile sourced from config.PerformanceConfig.
func tokenizeOptionsFromConfig(perf config.PerformanceConfig) textpipeline.TokenizeOptions {
	opts := textpipeline.DefaultTokenizeOptions()
	if perf.MaxWordLength > 0 {
		opts.MaxWordLength = perf.MaxWordLength
	}
	if perf.MinWordLength > 0 {
		opts.MinWordLength = perf.MinWordLength
	}
	if perf.MaxWordsToIndex > 0 {
		opts.MaxWordsToIndex = perf.MaxWordsToIndex
	}
	return opts
}
