package indexer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerd/trackerd/internal/config"
	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

// stubExtractor yields a fixed metadata map for every path, driven by a
// per-test override map keyed by path.
type stubExtractor struct {
	fields   map[string][]string
	fullText string
}

func (s *stubExtractor) Extract(ctx context.Context, module, path string, isDir bool) (*ExtractedMetadata, error) {
	var ft io.Reader
	if s.fullText != "" {
		ft = strings.NewReader(s.fullText)
	}
	return &ExtractedMetadata{Fields: s.fields, FullText: ft}, nil
}

func fixedTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files.description"), []byte(`
[Files]
ID=1
Database=file
HasMetadata=true
HasFullText=true
Mimes=text/plain

[File:Path]
ID=10
DataType=String

[File:Name]
ID=11
DataType=String

[File:Mime]
ID=12
DataType=Keyword
Weight=1

[File:Contents]
ID=13
DataType=FullText
Weight=1
`), 0644))
	r := ontology.New()
	require.NoError(t, r.Load(dir))
	return r
}

func testManager(t *testing.T) *dbengine.Manager {
	t.Helper()
	cfg := config.DatabasesConfig{
		DataDir:       filepath.Join(t.TempDir(), "dbs"),
		Common:        config.DBTuning{CacheSizePages: 16},
		Cache:         config.DBTuning{CacheSizePages: 16},
		FileMeta:      config.DBTuning{CacheSizePages: 16},
		FileContents:  config.DBTuning{CacheSizePages: 16},
		EmailMeta:     config.DBTuning{CacheSizePages: 16},
		EmailContents: config.DBTuning{CacheSizePages: 16},
		Xesam:         config.DBTuning{CacheSizePages: 16},
	}
	m, err := dbengine.OpenManager(context.Background(), cfg, false, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestIndexer_CommitCreatesServiceRow(t *testing.T) {
	registry := testRegistry(t)
	manager := testManager(t)
	extractor := &stubExtractor{fields: map[string][]string{
		"File:Path": {"/docs"},
		"File:Name": {"report.txt"},
		"File:Mime": {"text/plain"},
	}}

	ix, err := New(context.Background(), manager, registry, extractor, textpipeline.DefaultTokenizeOptions(), 0)
	require.NoError(t, err)

	err = ix.Commit(context.Background(), "default", "/docs/report.txt", false, fixedTime(), 100)
	require.NoError(t, err)

	common := manager.Handle(dbengine.DBCommon)
	res, err := common.Procedure(context.Background(), procGetServiceByPath, "/docs", "report.txt")
	require.NoError(t, err)
	require.True(t, res.Next())
	assert.Equal(t, int64(1), res.Get(3).Int) // service_type_id == Files(1)
}

func TestIndexer_CommitTwiceIsIdempotent(t *testing.T) {
	registry := testRegistry(t)
	manager := testManager(t)
	extractor := &stubExtractor{fields: map[string][]string{
		"File:Path": {"/docs"},
		"File:Name": {"report.txt"},
		"File:Mime": {"text/plain"},
	}}

	ix, err := New(context.Background(), manager, registry, extractor, textpipeline.DefaultTokenizeOptions(), 0)
	require.NoError(t, err)

	ts := fixedTime()
	require.NoError(t, ix.Commit(context.Background(), "default", "/docs/report.txt", false, ts, 100))
	require.NoError(t, ix.Commit(context.Background(), "default", "/docs/report.txt", false, ts, 100))

	common := manager.Handle(dbengine.DBCommon)
	res, err := common.Query(context.Background(), "SELECT COUNT(*) FROM services")
	require.NoError(t, err)
	require.True(t, res.Next())
	assert.Equal(t, int64(1), res.Get(0).Int)
}

func TestIndexer_DeleteRemovesServiceAndMetadata(t *testing.T) {
	registry := testRegistry(t)
	manager := testManager(t)
	extractor := &stubExtractor{fields: map[string][]string{
		"File:Path": {"/docs"},
		"File:Name": {"report.txt"},
		"File:Mime": {"text/plain"},
	}}

	ix, err := New(context.Background(), manager, registry, extractor, textpipeline.DefaultTokenizeOptions(), 0)
	require.NoError(t, err)
	require.NoError(t, ix.Commit(context.Background(), "default", "/docs/report.txt", false, fixedTime(), 100))

	require.NoError(t, ix.Delete(context.Background(), "/docs/report.txt"))

	common := manager.Handle(dbengine.DBCommon)
	res, err := common.Query(context.Background(), "SELECT COUNT(*) FROM services")
	require.NoError(t, err)
	require.True(t, res.Next())
	assert.Equal(t, int64(0), res.Get(0).Int)
}

func TestIndexer_MoveRewritesPathAndName(t *testing.T) {
	registry := testRegistry(t)
	manager := testManager(t)
	extractor := &stubExtractor{fields: map[string][]string{
		"File:Path": {"/docs"},
		"File:Name": {"report.txt"},
		"File:Mime": {"text/plain"},
	}}

	ix, err := New(context.Background(), manager, registry, extractor, textpipeline.DefaultTokenizeOptions(), 0)
	require.NoError(t, err)
	require.NoError(t, ix.Commit(context.Background(), "default", "/docs/report.txt", false, fixedTime(), 100))

	require.NoError(t, ix.Move(context.Background(), "/docs/report.txt", "/archive/report.txt"))

	common := manager.Handle(dbengine.DBCommon)
	res, err := common.Procedure(context.Background(), procGetServiceByPath, "/archive", "report.txt")
	require.NoError(t, err)
	assert.True(t, res.Next())
}
