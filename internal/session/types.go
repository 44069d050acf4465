package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/park285/Cheese-Video-Analyzer/internal/artifact"
	"github.com/park285/Cheese-Video-Analyzer/internal/gamerecord"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible without a new submission.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Active reports whether a job is in flight. The submit affordance is disabled while true.
func (s Status) Active() bool { return s == StatusUploading || s == StatusStreaming }

// State is an immutable snapshot of the current session.
type State struct {
	SessionID string
	Status    Status
	Progress  int
	Moves     []string
	Artifact  *artifact.Artifact
	Preview   *artifact.Artifact
	Summary   gamerecord.Summary
	Err       *Error
	// 분석기가 PGN을 보내지 않아 수순으로 다시 만든 기록
	Synthesized bool
	// done 프레임 이후 결과 조회가 끝날 때까지 true
	Fetching bool

	seq uint64
}

func (s State) clone() State {
	out := s
	out.Moves = append([]string{}, s.Moves...)
	if s.Artifact != nil {
		a := *s.Artifact
		out.Artifact = &a
	}
	if s.Preview != nil {
		p := *s.Preview
		out.Preview = &p
	}
	return out
}

func idleState() State {
	return State{Status: StatusIdle, Moves: []string{}}
}

// Input is the user-selected video. Size < 0 means unknown.
// Once submitted, the reader belongs to the transport, which closes it when it is an io.Closer.
type Input struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// FileInput opens path for submission.
func FileInput(path string) (*Input, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, newError(KindValidation, ErrNoInput)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, newError(KindValidation, fmt.Errorf("%w: %v", ErrNoInput, err))
	}
	if st.IsDir() {
		return nil, newError(KindValidation, fmt.Errorf("%w: %s is a directory", ErrNoInput, path))
	}
	if st.Size() == 0 {
		return nil, newError(KindValidation, ErrEmptyInput)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindValidation, fmt.Errorf("%w: %v", ErrNoInput, err))
	}
	return &Input{Name: filepath.Base(path), Size: st.Size(), Reader: f}, nil
}

func (in *Input) validate() error {
	if in == nil || in.Reader == nil {
		return ErrNoInput
	}
	if in.Size == 0 {
		return ErrEmptyInput
	}
	return nil
}
