package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const indexFileName = "index.gob"

var keyRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidKey reports whether key can name an index on every backend.
func ValidKey(key string) bool {
	return keyRe.MatchString(key) && key != "." && key != ".."
}

// FileStore keeps each index in <dir>/<key>/index.gob.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid index key %q", key)
	}
	return filepath.Join(s.dir, key, indexFileName), nil
}

// Save writes to a temp file beside the target and renames it into place, so
// readers see either the old index or the new one.
func (s *FileStore) Save(ctx context.Context, key string, idx *Index) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := encode(idx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, indexFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, key string) (*Index, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(p)
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return decode(data)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Dir(p)); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}
