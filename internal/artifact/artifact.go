package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Artifact is a materialized, downloadable blob owned by one analysis session.
// It stays retrievable until the owner releases it.
type Artifact struct {
	Key         string
	Name        string
	ContentType string
	Size        int64
	Location    string
	CreatedAt   time.Time
}

// Store materializes artifacts and releases them when the owning session goes away.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (*Artifact, error)
	Open(ctx context.Context, a *Artifact) (io.ReadCloser, error)
	Release(ctx context.Context, a *Artifact) error
}

var (
	ErrNotFound    = errors.New("artifact not found or already released")
	ErrNilArtifact = errors.New("nil artifact")
)

// ReadAll returns the full content of a.
func ReadAll(ctx context.Context, s Store, a *Artifact) ([]byte, error) {
	rc, err := s.Open(ctx, a)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", a.Key, err)
	}
	return b, nil
}

func newArtifact(name, contentType string, size int64) *Artifact {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "artifact.bin"
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	return &Artifact{
		Key:         uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now(),
	}
}
