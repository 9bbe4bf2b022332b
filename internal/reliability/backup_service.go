package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// retainedBackups is how many archives survive a prune pass
const retainedBackups = 24

// BackupService archives the data directory and uploads it offsite. The
// archive holds every database file plus the persisted feed state, with a
// manifest of per-file checksums for restore verification.
type BackupService struct {
	store   *ObjectStoreClient
	dataDir string
	prefix  string
	log     zerolog.Logger
}

// backupManifest describes the archive contents
type backupManifest struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []manifestFile `json:"files"`
}

type manifestFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// NewBackupService creates a new backup service
func NewBackupService(store *ObjectStoreClient, dataDir, prefix string, log zerolog.Logger) *BackupService {
	return &BackupService{
		store:   store,
		dataDir: dataDir,
		prefix:  strings.TrimSuffix(prefix, "/"),
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup builds a tar.gz of the data directory and uploads
// it, then prunes archives beyond the retention count.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	start := time.Now()
	s.log.Info().Msg("Starting backup")

	files, err := s.backupFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		s.log.Warn().Str("data_dir", s.dataDir).Msg("Nothing to back up")
		return nil
	}

	archivePath := filepath.Join(s.dataDir, "backup-staging.tar.gz")
	manifest, err := s.writeArchive(archivePath, files)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	key := fmt.Sprintf("%s/stocker-%s.tar.gz", s.prefix, manifest.Timestamp.Format("20060102-150405"))

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	if err := s.store.Upload(ctx, key, archive); err != nil {
		return err
	}

	if err := s.prune(ctx); err != nil {
		// Losing a prune pass is not worth failing the backup over
		s.log.Warn().Err(err).Msg("Failed to prune old backups")
	}

	s.log.Info().
		Str("key", key).
		Int("files", len(manifest.Files)).
		Dur("duration", time.Since(start)).
		Msg("Backup uploaded")

	return nil
}

// ListBackups returns stored archives, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]ObjectInfo, error) {
	return s.store.List(ctx, s.prefix+"/")
}

// backupFiles collects database files and feed state from the data dir
func (s *BackupService) backupFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".msgpack") {
			files = append(files, filepath.Join(s.dataDir, name))
		}
	}
	return files, nil
}

// writeArchive produces a tar.gz containing the files plus a manifest entry
func (s *BackupService) writeArchive(archivePath string, files []string) (*backupManifest, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	manifest := &backupManifest{Timestamp: time.Now().UTC()}

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, err
		}

		if err := s.addFile(tw, path, info); err != nil {
			return nil, err
		}

		manifest.Files = append(manifest.Files, manifestFile{
			Name:      filepath.Base(path),
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	header := &tar.Header{
		Name:    "manifest.json",
		Mode:    0644,
		Size:    int64(len(manifestBytes)),
		ModTime: manifest.Timestamp,
	}
	if err := tw.WriteHeader(header); err != nil {
		return nil, fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestBytes); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return manifest, nil
}

func (s *BackupService) addFile(tw *tar.Writer, path string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}

// prune deletes archives beyond the retention count, oldest first
func (s *BackupService) prune(ctx context.Context) error {
	objects, err := s.store.List(ctx, s.prefix+"/")
	if err != nil {
		return err
	}
	if len(objects) <= retainedBackups {
		return nil
	}

	for _, obj := range objects[retainedBackups:] {
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			return err
		}
		s.log.Debug().Str("key", obj.Key).Msg("Pruned old backup")
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
