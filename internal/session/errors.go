package session

import (
	"errors"
	"fmt"

	"github.com/park285/Cheese-Video-Analyzer/pkg/analysisdto"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindSubmission  Kind = "submission"
	KindStream      Kind = "stream"
	KindResultFetch Kind = "result_fetch"
)

type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) + " error" }

// Sentinels for errors.Is against *Error.
var (
	ErrValidation  error = kindSentinel(KindValidation)
	ErrSubmission  error = kindSentinel(KindSubmission)
	ErrStream      error = kindSentinel(KindStream)
	ErrResultFetch error = kindSentinel(KindResultFetch)
)

var (
	ErrNoInput    = errors.New("no video file selected")
	ErrEmptyInput = errors.New("selected video file is empty")
	ErrSuperseded = errors.New("submission superseded by a newer session")
	ErrClosed     = errors.New("session controller closed")
	ErrNotReady   = errors.New("game record not available")
	ErrNoSession  = errors.New("no active session")
)

var defaultMessages = map[Kind]string{
	KindValidation:  "Select a video file before submitting.",
	KindSubmission:  "The video could not be submitted. Please try again.",
	KindStream:      "Lost connection to the analysis progress stream.",
	KindResultFetch: "Analysis finished but the results are unavailable.",
}

// Error is the terminal failure of a session, or a validation failure of a submission.
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.Kind
}

// Retryable is true when resubmitting may succeed.
func (e *Error) Retryable() bool { return e.Kind != KindValidation }

func (e *Error) DomainError() *analysisdto.DomainError {
	if e == nil {
		return nil
	}
	return &analysisdto.DomainError{
		Code:      string(e.Kind),
		Message:   defaultMessages[e.Kind],
		Retryable: e.Retryable(),
	}
}
