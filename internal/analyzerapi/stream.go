package analyzerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stream modes.
const (
	ModeSSE = "sse"
	ModeWS  = "ws"
)

// ErrStreamEnded is reported when the server closes the stream without an error.
var ErrStreamEnded = errors.New("progress stream ended")

// Handlers receive raw frames and the terminal transport error of one subscription.
// Both are invoked from the stream goroutine; OnError fires at most once.
type Handlers struct {
	OnFrame func(data []byte)
	OnError func(err error)
}

// Subscription is an open live-update channel. Close never blocks and may be called repeatedly;
// after Close no handler is invoked again.
type Subscription interface {
	Close()
}

type Streamer interface {
	Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error)
}

type StreamOption func(*streamOptions)

type streamOptions struct {
	headers HeaderProvider
	logger  *zap.Logger

	dialTimeout time.Duration
}

func WithStreamHeaders(h HeaderProvider) StreamOption {
	return func(o *streamOptions) { o.headers = h }
}

func WithStreamLogger(l *zap.Logger) StreamOption {
	return func(o *streamOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialTimeout bounds connecting to the progress channel. The open stream itself has no
// read deadline.
func WithDialTimeout(d time.Duration) StreamOption {
	return func(o *streamOptions) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// NewStreamer selects the transport for the live update channel.
func NewStreamer(mode, baseURL, wsURL string, opts ...StreamOption) (Streamer, error) {
	o := streamOptions{logger: zap.NewNop(), dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeSSE:
		return &SSEStreamer{baseURL: strings.TrimRight(baseURL, "/"), opts: o}, nil
	case ModeWS:
		if strings.TrimSpace(wsURL) == "" {
			return nil, errors.New("websocket url is required for ws mode")
		}
		return &WSStreamer{wsURL: strings.TrimRight(wsURL, "/"), opts: o}, nil
	default:
		return nil, fmt.Errorf("unsupported stream mode: %s", mode)
	}
}

func progressPath(sessionID string) string {
	return "/api/progress/" + sessionID
}

// subscription gates handler delivery. Once closed, nothing is dispatched.
type subscription struct {
	cancel  context.CancelFunc
	h       Handlers
	closed  atomic.Bool
	errOnce sync.Once
	done    chan struct{}
}

func newSubscription(cancel context.CancelFunc, h Handlers) *subscription {
	return &subscription{cancel: cancel, h: h, done: make(chan struct{})}
}

func (s *subscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Done is closed when the stream goroutine exits.
func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) frame(data []byte) {
	if s.closed.Load() || s.h.OnFrame == nil {
		return
	}
	s.h.OnFrame(data)
}

func (s *subscription) fail(err error) {
	if s.closed.Load() {
		return
	}
	s.errOnce.Do(func() {
		if s.h.OnError != nil {
			s.h.OnError(err)
		}
	})
}

func buildHeaders(h HeaderProvider) http.Header {
	hdr := http.Header{}
	if h == nil {
		return hdr
	}
	for k, v := range h() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
