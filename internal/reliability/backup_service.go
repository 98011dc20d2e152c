// Package reliability provides operational safeguards around the engine's
// databases: archived cloud backups with checksums and retention pruning.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// backupPrefix namespaces backup objects within the bucket
const backupPrefix = "backups/"

// databaseNames are the databases included in every backup archive
var databaseNames = []string{"universe", "config", "history", "portfolio", "ledger"}

// BackupMetadata describes one backup archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database file within a backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupService creates tar.gz archives of the database files and uploads
// them to S3-compatible storage
type BackupService struct {
	s3Client      *S3Client
	dataDir       string
	retentionDays int
	log           zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(s3Client *S3Client, dataDir string, retentionDays int, log zerolog.Logger) *BackupService {
	return &BackupService{
		s3Client:      s3Client,
		dataDir:       dataDir,
		retentionDays: retentionDays,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup archives the databases and uploads the archive,
// then prunes backups past the retention window
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Databases: make([]DatabaseMetadata, 0, len(databaseNames)),
	}

	for _, name := range databaseNames {
		path := filepath.Join(s.dataDir, name+".db")
		info, err := os.Stat(path)
		if err != nil {
			// Databases that haven't been created yet are skipped, not fatal
			s.log.Warn().Str("database", name).Msg("Database file missing, skipping")
			continue
		}

		checksum, err := fileChecksum(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  name + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	if len(metadata.Databases) == 0 {
		return fmt.Errorf("no database files found under %s", s.dataDir)
	}

	archivePath, err := s.createArchive(metadata)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archivePath) }()

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	key := backupPrefix + metadata.Timestamp.Format("20060102-150405") + ".tar.gz"
	if err := s.s3Client.Upload(ctx, key, archive); err != nil {
		return err
	}

	s.log.Info().
		Str("key", key).
		Int("databases", len(metadata.Databases)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Backup uploaded")

	return s.pruneOldBackups(ctx)
}

// createArchive writes the databases plus metadata.json into a temp tar.gz
// and returns its path
func (s *BackupService) createArchive(metadata BackupMetadata) (string, error) {
	tmpFile, err := os.CreateTemp("", "rotor-backup-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer tmpFile.Close()

	gzWriter := gzip.NewWriter(tmpFile)
	tarWriter := tar.NewWriter(gzWriter)

	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	if err := writeTarEntry(tarWriter, "metadata.json", encoded, metadata.Timestamp); err != nil {
		return "", err
	}

	for _, db := range metadata.Databases {
		path := filepath.Join(s.dataDir, db.Filename)
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s for archiving: %w", db.Filename, err)
		}
		if err := writeTarEntry(tarWriter, db.Filename, content, metadata.Timestamp); err != nil {
			return "", err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip: %w", err)
	}

	return tmpFile.Name(), nil
}

// pruneOldBackups deletes backups older than the retention window
func (s *BackupService) pruneOldBackups(ctx context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}

	objects, err := s.s3Client.List(ctx, backupPrefix)
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	pruned := 0
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".tar.gz") || !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.s3Client.Delete(ctx, obj.Key); err != nil {
			s.log.Error().Err(err).Str("key", obj.Key).Msg("Failed to prune backup")
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.log.Info().Int("pruned", pruned).Msg("Old backups pruned")
	}
	return nil
}

// writeTarEntry appends one file to the tar stream
func writeTarEntry(tw *tar.Writer, name string, content []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(content)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("failed to write tar entry %s: %w", name, err)
	}
	return nil
}

// fileChecksum computes the SHA-256 checksum of a file
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
