package livesearch

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
	"github.com/trackerd/trackerd/internal/indexer"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

type stubExtractor struct {
	fields map[string][]string
}

func (s *stubExtractor) Extract(ctx context.Context, module, path string, isDir bool) (*indexer.ExtractedMetadata, error) {
	return &indexer.ExtractedMetadata{Fields: s.fields, FullText: io.Reader(nil)}, nil
}

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files.description"), []byte(`
[Files]
ID=1
Database=file
HasMetadata=true
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

func setup(t *testing.T) (*ontology.Registry, *dbengine.Manager, *indexer.Indexer, *Manager) {
	t.Helper()
	reg := testRegistry(t)
	dbm := testManager(t)
	ix, err := indexer.New(context.Background(), dbm, reg, &stubExtractor{}, textpipeline.DefaultTokenizeOptions(), 0)
	require.NoError(t, err)

	lm, err := New(context.Background(), dbm, reg)
	require.NoError(t, err)
	ix.SetEventNotifier(lm.Notify)
	return reg, dbm, ix, lm
}

func commitFile(t *testing.T, ix *indexer.Indexer, path, mime string) {
	t.Helper()
	dir := filepath.Dir(path)
	require.NoError(t, ix.Commit(context.Background(), "default", path, false, time.Now(), 100))
	_ = dir
	_ = mime
}

const plainTextQuery = `<query content="Files"><equals><field name="File:Mime" /><string>text/plain</string></equals></query>`

func TestLiveSearch_StartFindsExistingMatch(t *testing.T) {
	reg, dbm, ix, lm := setup(t)
	_ = reg
	_ = dbm

	commitFile(t, ix, "/docs/report.txt", "text/plain")

	subID, _, detach := lm.Subscribe()
	defer detach(context.Background())

	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)

	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)

	require.NoError(t, lm.StartSearch(context.Background(), searchID))

	count, err := lm.GetHitCount(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLiveSearch_MatchingCycleEmitsAdded(t *testing.T) {
	_, _, ix, lm := setup(t)

	subID, signals, detach := lm.Subscribe()
	defer detach(context.Background())

	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)
	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)
	require.NoError(t, lm.StartSearch(context.Background(), searchID))

	count, err := lm.GetHitCount(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	commitFile(t, ix, "/docs/new.txt", "text/plain")

	more, err := lm.runCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, more)

	count, err = lm.GetHitCount(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	select {
	case sig := <-signals:
		assert.Equal(t, HitsAdded, sig.Kind)
		assert.Equal(t, 1, sig.Count)
	default:
		t.Fatal("expected a queued HitsAdded signal")
	}
}

func TestLiveSearch_CloseSearchClearsHits(t *testing.T) {
	_, _, ix, lm := setup(t)
	commitFile(t, ix, "/docs/report.txt", "text/plain")

	subID, _, detach := lm.Subscribe()
	defer detach(context.Background())
	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)
	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)
	require.NoError(t, lm.StartSearch(context.Background(), searchID))

	require.NoError(t, lm.CloseSearch(context.Background(), searchID))

	_, err = lm.GetHitCount(context.Background(), searchID)
	assert.ErrorIs(t, err, ErrUnknownSearch)
}

func TestLiveSearch_SubscriberDropCascadesSessionClose(t *testing.T) {
	_, _, ix, lm := setup(t)
	commitFile(t, ix, "/docs/report.txt", "text/plain")

	subID, _, detach := lm.Subscribe()
	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)
	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)
	require.NoError(t, lm.StartSearch(context.Background(), searchID))

	detach(context.Background())

	_, err = lm.GetHitCount(context.Background(), searchID)
	assert.ErrorIs(t, err, ErrUnknownSearch)
}

func TestLiveSearch_UnknownSessionErrors(t *testing.T) {
	_, _, _, lm := setup(t)
	_, err := lm.NewSearch("bogus", plainTextQuery)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestLiveSearch_GetHitsBeforeActiveErrors(t *testing.T) {
	_, _, _, lm := setup(t)
	subID, _, detach := lm.Subscribe()
	defer detach(context.Background())
	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)
	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)

	_, err = lm.GetHitCount(context.Background(), searchID)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestLiveSearch_GetHitDataReportsUnsetForMissingID(t *testing.T) {
	_, _, ix, lm := setup(t)
	commitFile(t, ix, "/docs/report.txt", "text/plain")

	subID, _, detach := lm.Subscribe()
	defer detach(context.Background())
	sessID, err := lm.OpenSession(subID)
	require.NoError(t, err)
	searchID, err := lm.NewSearch(sessID, plainTextQuery)
	require.NoError(t, err)
	require.NoError(t, lm.StartSearch(context.Background(), searchID))

	hits, err := lm.GetHits(context.Background(), searchID, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	ids := append(append([]int64{}, hits...), 9999)
	data, ok, err := lm.GetHitData(context.Background(), searchID, ids)
	require.NoError(t, err)
	assert.True(t, ok[hits[0]])
	assert.False(t, ok[9999])
	assert.True(t, strings.HasSuffix(data[hits[0]].Name, ".txt"))
}
