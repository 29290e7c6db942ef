package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// DefaultFilePath is where the file backend keeps its data unless configured.
const DefaultFilePath = "db.json"

// fileDocument is the on-disk layout: {"urls": {"<code>": record}}.
type fileDocument struct {
	URLs map[string]fileRecord `json:"urls"`
}

// fileRecord stores times as Unix epoch milliseconds.
type fileRecord struct {
	URL       string `json:"url"`
	Code      string `json:"code"`
	Clicks    int64  `json:"clicks"`
	CreatedAt int64  `json:"createdAt"`
	Expiry    int64  `json:"expiry"`
}

// FileBackend stores the snapshot as a single JSON document.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileBackend{path: path}
}

// Path returns the file the backend reads and writes.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return Snapshot{}, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}

	snap := make(Snapshot, len(doc.URLs))
	for key, rec := range doc.URLs {
		code := rec.Code
		if code == "" {
			code = key
		}
		snap[key] = shortener.Link{
			OriginalURL: rec.URL,
			Code:        code,
			Clicks:      rec.Clicks,
			CreatedAt:   time.UnixMilli(rec.CreatedAt),
			Expiry:      time.UnixMilli(rec.Expiry),
		}
	}
	return snap, nil
}

// Save writes s to a temporary file beside the target, syncs it and renames
// it into place.
func (b *FileBackend) Save(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := fileDocument{URLs: make(map[string]fileRecord, len(s))}
	for code, l := range s {
		doc.URLs[code] = fileRecord{
			URL:       l.OriginalURL,
			Code:      l.Code,
			Clicks:    l.Clicks,
			CreatedAt: l.CreatedAt.UnixMilli(),
			Expiry:    l.Expiry.UnixMilli(),
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir, base := filepath.Split(b.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
