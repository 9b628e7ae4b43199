package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Metadata keys.
const (
	KeyIDType        = "id_type"
	KeyFeatureType   = "feature_type"
	KeySourcePath    = "source_path"
	KeySourceSize    = "source_size"
	KeySourceModTime = "source_modtime"
	KeyCreatedAt     = "created_at"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Metadata returns all key/value pairs stored with the rankings.
func (s *Store) Metadata() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return meta, nil
}

// MetadataValue returns a single metadata value, "" when unset.
func (s *Store) MetadataValue(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query metadata %s: %w", key, err)
	}
	return v, nil
}

// writeMetadata inserts meta into an emptied metadata table.
func writeMetadata(ctx context.Context, db execer, meta map[string]string) error {
	for k, v := range meta {
		if _, err := db.ExecContext(ctx, `INSERT INTO metadata VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write metadata %s: %w", k, err)
		}
	}
	return nil
}

// Valid reports whether the stored rankings were converted from a source file
// with the given fingerprint.
func (s *Store) Valid(src FileFingerprint) bool {
	meta, err := s.Metadata()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{KeySourceSize, strconv.FormatInt(src.Size, 10)},
		{KeySourceModTime, src.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for _, c := range checks {
		if meta[c.key] != c.val {
			return false
		}
	}
	return true
}

func fingerprintMetadata(src FileFingerprint) map[string]string {
	return map[string]string{
		KeySourcePath:    src.Path,
		KeySourceSize:    strconv.FormatInt(src.Size, 10),
		KeySourceModTime: src.ModTime.UTC().Format(time.RFC3339Nano),
		KeyCreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}
