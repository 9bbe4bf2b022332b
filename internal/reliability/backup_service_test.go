package reliability

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFilesFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.db"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed_state.msgpack"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	service := NewBackupService(nil, dir, "backups", zerolog.Nop())

	files, err := service.backupFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f, "notes.txt")
	}
}

func TestWriteArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "portfolio.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("database bytes"), 0644))

	service := NewBackupService(nil, dir, "backups", zerolog.Nop())

	archivePath := filepath.Join(dir, "out.tar.gz")
	manifest, err := service.writeArchive(archivePath, []string{dbPath})
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, "portfolio.db", manifest.Files[0].Name)
	assert.Equal(t, int64(len("database bytes")), manifest.Files[0].SizeBytes)
	assert.NotEmpty(t, manifest.Files[0].Checksum)

	// The archive holds the database file plus the manifest
	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	names := map[string]bool{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[header.Name] = true
	}

	assert.True(t, names["portfolio.db"])
	assert.True(t, names["manifest.json"])
}
