package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/spf13/afero"
)

// FileStore keeps one JSON document per key in a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory %s: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Save replaces the stored document through a rename, so readers never see a
// partial write.
func (s *FileStore) Save(_ context.Context, key string, r result.Result) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", key, err)
	}

	tmp := s.path(key) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, s.path(key)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to commit result %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) (result.Result, error) {
	if err := validKey(key); err != nil {
		return result.Result{}, err
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return result.Result{}, fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		return result.Result{}, fmt.Errorf("failed to read result %s: %w", key, err)
	}
	var r result.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return result.Result{}, fmt.Errorf("failed to decode result %s: %w", key, err)
	}
	return r, nil
}
