package reliability

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeDB(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".db"), []byte(content), 0644))
}

func TestCreateArchive_ContainsMetadataAndDatabases(t *testing.T) {
	dataDir := t.TempDir()
	writeFakeDB(t, dataDir, "universe", "universe-bytes")
	writeFakeDB(t, dataDir, "ledger", "ledger-bytes")

	svc := NewBackupService(nil, dataDir, 30, zerolog.Nop())

	checksum, err := fileChecksum(filepath.Join(dataDir, "universe.db"))
	require.NoError(t, err)

	metadata := BackupMetadata{
		Timestamp: time.Date(2025, 3, 3, 2, 30, 0, 0, time.UTC),
		Databases: []DatabaseMetadata{
			{Name: "universe", Filename: "universe.db", SizeBytes: 14, Checksum: checksum},
			{Name: "ledger", Filename: "ledger.db", SizeBytes: 12},
		},
	}

	archivePath, err := svc.createArchive(metadata)
	require.NoError(t, err)
	defer os.Remove(archivePath)

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := map[string][]byte{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = content
	}

	require.Contains(t, entries, "metadata.json")
	assert.Equal(t, []byte("universe-bytes"), entries["universe.db"])
	assert.Equal(t, []byte("ledger-bytes"), entries["ledger.db"])
}

func TestFileChecksum_Deterministic(t *testing.T) {
	dataDir := t.TempDir()
	writeFakeDB(t, dataDir, "universe", "same-bytes")
	writeFakeDB(t, dataDir, "config", "same-bytes")
	writeFakeDB(t, dataDir, "ledger", "other-bytes")

	a, err := fileChecksum(filepath.Join(dataDir, "universe.db"))
	require.NoError(t, err)
	b, err := fileChecksum(filepath.Join(dataDir, "config.db"))
	require.NoError(t, err)
	c, err := fileChecksum(filepath.Join(dataDir, "ledger.db"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
