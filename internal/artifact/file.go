package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes each artifact to its own temporary file under dir.
// Release removes the file; a released artifact can no longer be opened.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(ctx context.Context, name, contentType string, data []byte) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := newArtifact(name, contentType, int64(len(data)))
	f, err := os.CreateTemp(s.dir, "analysis-*-"+sanitizeName(a.Name))
	if err != nil {
		return nil, fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close artifact file: %w", err)
	}
	a.Location = f.Name()
	return a, nil
}

func (s *FileStore) Open(ctx context.Context, a *Artifact) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNilArtifact
	}
	f, err := os.Open(a.Location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FileStore) Release(ctx context.Context, a *Artifact) error {
	if a == nil || a.Location == "" {
		return nil
	}
	// 이미 지워진 파일은 무시
	if err := os.Remove(a.Location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		return "artifact"
	}
	return name
}
