package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"IssueTriage/internal/domain"
)

const fileSuffix = ".json"

// FileStore keeps one <num>.json file per record in a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(num int) string {
	return filepath.Join(s.dir, strconv.Itoa(num)+fileSuffix)
}

// Exists reports whether a record file exists for num.
func (s *FileStore) Exists(_ context.Context, num int) (bool, error) {
	_, err := os.Stat(s.path(num))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat record #%d: %w", num, err)
	}
}

// Put writes the record to a temp file and links it into place. Linking fails
// when the target exists, so a record is never overwritten or half-written.
func (s *FileStore) Put(_ context.Context, num int, record domain.Record) error {
	raw, err := encode(num, record)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write record #%d: %w", num, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync record #%d: %w", num, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record #%d: %w", num, err)
	}

	if err := os.Link(tmpName, s.path(num)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("record #%d: %w", num, ErrAlreadyExists)
		}
		return fmt.Errorf("commit record #%d: %w", num, err)
	}
	return nil
}

// Get reads the record stored for num.
func (s *FileStore) Get(_ context.Context, num int) (domain.Record, error) {
	raw, err := os.ReadFile(s.path(num))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("record #%d: %w", num, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read record #%d: %w", num, err)
	}
	return decode(num, raw)
}

// Known lists numbers that have a record file. Temp files and names that are
// not positive integers are ignored.
func (s *FileStore) Known(_ context.Context) (map[int]struct{}, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	known := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if num, ok := parseNum(strings.TrimSuffix(name, fileSuffix)); ok {
			known[num] = struct{}{}
		}
	}
	return known, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
