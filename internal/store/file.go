package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"taskweave/internal/core"
)

// File keeps one JSON record per identity under a directory:
//
//	{dir}/{hash[0:2]}/{hash}.json
//
// Records are written atomically, so a crash never leaves a partial
// record behind and a concurrent reader sees either nothing or the whole
// record.
type File struct {
	dir string
}

// NewFile returns a File store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Dir() string { return f.dir }

func (f *File) IsComplete(_ context.Context, id core.Identity) (bool, error) {
	_, err := os.Stat(f.recordPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat completion record: %w", err)
}

func (f *File) MarkComplete(_ context.Context, id core.Identity, outputs core.Outputs) error {
	data, err := encodeRecord(id, outputs)
	if err != nil {
		return err
	}
	path := f.recordPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write completion record: %w", err)
	}
	return nil
}

func (f *File) LoadOutputs(_ context.Context, id core.Identity) (core.Outputs, error) {
	data, err := os.ReadFile(f.recordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("read completion record: %w", err)
	}
	return decodeRecord(id, data)
}

func (f *File) recordPath(id core.Identity) string {
	return filepath.Join(f.dir, filepath.FromSlash(recordName(id)))
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
