package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Video-Analyzer/internal/gamerecord"
)

// Completed is handed to the Recorder after a session reaches done.
type Completed struct {
	SessionID   string
	Moves       []string
	PGN         string
	Summary     gamerecord.Summary
	CompletedAt time.Time
}

// Recorder archives completed analyses. Failures are logged and never fail the session.
type Recorder interface {
	Record(ctx context.Context, c Completed) error
}

// PreviewRenderer draws the final position of a move list as PNG.
type PreviewRenderer interface {
	RenderMoves(ctx context.Context, moves []string) ([]byte, error)
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithPreview(p PreviewRenderer) Option {
	return func(c *Controller) { c.preview = p }
}

// WithRecordName sets the file name of the downloadable game record.
func WithRecordName(name string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(name) != "" {
			c.recordName = strings.TrimSpace(name)
		}
	}
}
