package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/telemetry"
	"github.com/trackerd/trackerd/internal/textpipeline"
	"github.com/trackerd/trackerd/internal/wordindex"
)

// handleRegistrar adapts *dbengine.Handle to procedureRegistrar.
type handleRegistrar struct{ h *dbengine.Handle }

func (r handleRegistrar) Exec(ctx context.Context, sqlText string, args ...any) (interface {
	RowsAffected() (int64, error)
}, error) {
	return r.h.Exec(ctx, sqlText, args...)
}
func (r handleRegistrar) RegisterProcedure(name, sqlTemplate string) {
	r.h.RegisterProcedure(name, sqlTemplate)
}

// Engine answers text search, mime/location-filtered search, and Xesam
// queries over the database set the indexer populated (§4.5).
type Engine struct {
	manager    *dbengine.Manager
	registry   *ontology.Registry
	fileWords  *wordindex.Index
	emailWords *wordindex.Index
	tokenize   textpipeline.TokenizeOptions
	metrics    *telemetry.QueryMetrics
}

// New wires a query Engine against manager/registry, sharing the same
// word-index instances the indexer writes through. Query telemetry
// (hit counts, latency buckets, top terms) is persisted in the cache
// database alongside search_results_1, since both hold derived state
// that reindexing can regenerate.
func New(ctx context.Context, manager *dbengine.Manager, registry *ontology.Registry, fileWords, emailWords *wordindex.Index, tokenize textpipeline.TokenizeOptions) (*Engine, error) {
	common := manager.Handle(dbengine.DBCommon)
	registerRowFetchers(handleRegistrar{common})

	cache := manager.Handle(dbengine.DBCache)
	if err := registerSearchResultsSchema(ctx, handleRegistrar{cache}); err != nil {
		return nil, fmt.Errorf("query: search results schema: %w", err)
	}

	if err := telemetry.InitTelemetrySchema(cache.DB()); err != nil {
		return nil, fmt.Errorf("query: telemetry schema: %w", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(cache.DB())
	if err != nil {
		return nil, fmt.Errorf("query: telemetry store: %w", err)
	}

	return &Engine{
		manager:    manager,
		registry:   registry,
		fileWords:  fileWords,
		emailWords: emailWords,
		tokenize:   tokenize,
		metrics:    telemetry.NewQueryMetrics(metricsStore),
	}, nil
}

// Close stops the engine's background telemetry flush loop and flushes
// any pending metrics. It does not close the underlying database
// handles, which the manager owns.
func (e *Engine) Close() error {
	return e.metrics.Close()
}

// recordQuery records one search's telemetry. trackerd's search is
// lexical-only (there is no embedding/semantic path), so every search
// is classified QueryTypeLexical.
func (e *Engine) recordQuery(text string, hits []Hit, start time.Time) {
	e.metrics.Record(telemetry.QueryEvent{
		Query:       text,
		QueryType:   telemetry.QueryTypeLexical,
		ResultCount: len(hits),
		Latency:     time.Since(start),
		Timestamp:   start,
	})
}

type serviceRow struct {
	Path string
	Name string
	Mime string
}

func (e *Engine) fetchRow(ctx context.Context, typeID int, serviceID int64, detailed bool) (serviceRow, bool, error) {
	st, _ := e.registry.ServiceByID(typeID)
	proc := procGetApplicationByID
	if st != nil {
		switch st.DB {
		case ontology.DBFile:
			proc = procGetFileByID
			if detailed {
				proc = procGetFileByID2
			}
		case ontology.DBEmail:
			proc = procGetEmailByID
		}
	}

	common := e.manager.Handle(dbengine.DBCommon)
	res, err := common.Procedure(ctx, proc, serviceID)
	if err != nil {
		return serviceRow{}, false, err
	}
	if !res.Next() {
		return serviceRow{}, false, nil
	}
	row := serviceRow{
		Path: res.Get(1).AsString(),
		Name: res.Get(2).AsString(),
		Mime: res.Get(4).AsString(),
	}

	if detailed && st != nil && st.DB == ontology.DBFile && !pathExists(joinPath(row.Path, row.Name)) {
		return serviceRow{}, false, nil
	}
	return row, true, nil
}

func (e *Engine) lookupAll(ctx context.Context, token string) ([]wordindex.Posting, error) {
	var all []wordindex.Posting
	if e.fileWords != nil {
		p, err := e.fileWords.Lookup(ctx, token)
		if err != nil {
			return nil, err
		}
		all = append(all, p...)
	}
	if e.emailWords != nil {
		p, err := e.emailWords.Lookup(ctx, token)
		if err != nil {
			return nil, err
		}
		all = append(all, p...)
	}
	return all, nil
}

// removeDuds instructs both word indices to drop postings for ids the
// query engine found dangling while resolving hits (§4.4 "Dud removal").
func (e *Engine) removeDuds(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if e.fileWords != nil {
		if err := e.fileWords.RemoveDuds(ctx, ids); err != nil {
			return err
		}
	}
	if e.emailWords != nil {
		if err := e.emailWords.RemoveDuds(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// intersection is the shared token-lookup/intersect/rank core behind
// TextSearch and the mime/location-filtered variants (§4.5 step 3). It
// returns service ids that matched every token, ordered by summed score
// descending, alongside each id's resolved service-type id and score.
type intersection struct {
	ids    []int64
	scores map[int64]int
	typeOf map[int64]int
}

func (e *Engine) intersect(ctx context.Context, text string, typeFilter map[int]struct{}) (*intersection, error) {
	tokens := textpipeline.Tokenize(text, e.tokenize)
	if len(tokens) == 0 {
		return &intersection{scores: map[int64]int{}, typeOf: map[int64]int{}}, nil
	}

	scores := map[int64]int{}
	matchCount := map[int64]int{}
	typeOf := map[int64]int{}

	for _, token := range tokens {
		postings, err := e.lookupAll(ctx, token)
		if err != nil {
			return nil, err
		}
		seen := map[int64]bool{}
		for _, p := range postings {
			if typeFilter != nil {
				if _, ok := typeFilter[p.ServiceTypeID]; !ok {
					continue
				}
			}
			sid := int64(p.ServiceID)
			if seen[sid] {
				continue
			}
			seen[sid] = true
			scores[sid] += p.Score
			matchCount[sid]++
			typeOf[sid] = p.ServiceTypeID
		}
	}

	ids := make([]int64, 0, len(matchCount))
	for sid, count := range matchCount {
		if count == len(tokens) {
			ids = append(ids, sid)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})

	return &intersection{ids: ids, scores: scores, typeOf: typeOf}, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return filepath.Join(dir, name)
}
