package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystem_ExtractPlainTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	f := New()
	extracted, err := f.Extract(context.Background(), "files", path, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"notes.txt"}, extracted.Fields["File:Name"])
	assert.Equal(t, []string{"text/plain"}, extracted.Fields["File:Mime"])
	require.NotNil(t, extracted.FullText)

	buf := make([]byte, 11)
	n, _ := extracted.FullText.Read(buf)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestFilesystem_ExtractDirectoryHasNoFullText(t *testing.T) {
	dir := t.TempDir()

	f := New()
	extracted, err := f.Extract(context.Background(), "files", dir, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"inode/directory"}, extracted.Fields["File:Mime"])
	assert.Nil(t, extracted.FullText)
}

func TestFilesystem_ExtractBinaryFileHasNoFullText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	f := New()
	extracted, err := f.Extract(context.Background(), "files", path, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"image/png"}, extracted.Fields["File:Mime"])
	assert.Nil(t, extracted.FullText)
}

func TestFilesystem_ExtractTruncatesAtMaxTextBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f := &Filesystem{MaxTextBytes: 4}
	extracted, err := f.Extract(context.Background(), "files", path, false)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, _ := extracted.FullText.Read(buf)
	assert.Equal(t, "0123", string(buf[:n]))
}

func TestFilesystem_ExtractMissingFileErrors(t *testing.T) {
	f := New()
	_, err := f.Extract(context.Background(), "files", "/nonexistent/path/does/not/exist", false)
	assert.Error(t, err)
}
