package analyzerapi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const maxSSELine = 1 << 20

var errStreamAborted = errors.New("stream aborted")

// SSEStreamer reads the progress channel as text/event-stream. It never reconnects.
type SSEStreamer struct {
	baseURL string
	opts    streamOptions
}

func (s *SSEStreamer) Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	streamCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel, h)
	go s.run(streamCtx, sessionID, sub)
	return sub, nil
}

func (s *SSEStreamer) run(ctx context.Context, sessionID string, sub *subscription) {
	defer close(sub.done)
	defer sub.cancel()

	// fasthttp는 context를 받지 않으므로 취소 시 연결을 직접 닫아 대기 중인 read를 깨운다
	dialer := &streamDialer{timeout: s.opts.dialTimeout}
	stop := context.AfterFunc(ctx, dialer.abort)
	defer stop()

	hc := &fasthttp.Client{
		Dial:                      dialer.dial,
		StreamResponseBody:        true,
		WriteTimeout:              s.opts.dialTimeout,
		MaxIdemponentCallAttempts: 1,
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		_ = resp.CloseBodyStream()
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(s.baseURL + progressPath(url.PathEscape(sessionID)))
	for k, vs := range buildHeaders(s.opts.headers) {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.SetConnectionClose()

	if err := hc.Do(req, resp); err != nil {
		sub.fail(streamErr(ctx, fmt.Errorf("open stream: %w", err)))
		return
	}

	body := resp.BodyStream()
	if body == nil {
		body = bytes.NewReader(resp.Body())
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		b, _ := io.ReadAll(io.LimitReader(body, 512))
		sub.fail(&StatusError{Code: code, Body: string(b)})
		return
	}

	s.opts.logger.Debug("sse_stream_open", zap.String("session_id", sessionID))
	err := readEvents(body, sub.frame)
	if err == nil {
		err = ErrStreamEnded
	}
	sub.fail(streamErr(ctx, err))
}

func streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// streamDialer keeps the single connection of one stream so it can be closed from outside.
type streamDialer struct {
	timeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	aborted bool
}

func (d *streamDialer) dial(addr string) (net.Conn, error) {
	conn, err := fasthttp.DialTimeout(addr, d.timeout)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.aborted {
		_ = conn.Close()
		return nil, errStreamAborted
	}
	d.conn = conn
	return conn, nil
}

func (d *streamDialer) abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = true
	if d.conn != nil {
		_ = d.conn.Close()
	}
}

// readEvents parses an event stream and calls dispatch once per complete event with its
// joined data lines. It returns nil on a clean EOF; an unterminated trailing event is dropped.
func readEvents(r io.Reader, dispatch func([]byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var data []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			if len(data) > 0 {
				if payload := normalizeFrame(strings.Join(data, "\n")); payload != "" {
					dispatch([]byte(payload))
				}
				data = data[:0]
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		// event, id, retry 필드는 사용하지 않음
		if field == "data" {
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// normalizeFrame unwraps frames that the analyzer double-encodes as
// "data: {...}\n\n" inside the SSE data field, with literal backslash escapes.
func normalizeFrame(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "data:") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "data:"))
	}
	for strings.HasSuffix(s, `\n`) {
		s = strings.TrimSpace(strings.TrimSuffix(s, `\n`))
	}
	return s
}
