package analyzerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Video-Analyzer/pkg/analysisdto"
)

// VideoField is the multipart field name the analyzer expects for the upload.
const VideoField = "video"

var (
	ErrEmptySessionID = errors.New("analyzer returned an empty session id")
	ErrUploadTooLarge = errors.New("upload exceeds configured size limit")
	ErrResultPending  = errors.New("analysis result is not ready")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer api error: status=%d body=%s", e.Code, e.Body)
}

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	uploadTimeout  time.Duration
	maxUploadBytes int64
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(c *Client) { c.maxUploadBytes = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		uploadTimeout:  300 * time.Second,
		maxUploadBytes: 512 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	// 업로드 응답은 분석 서버가 파일을 다 받은 뒤에 오므로 업로드 타임아웃 기준
	c.http.ReadTimeout = c.uploadTimeout
	c.http.WriteTimeout = c.uploadTimeout
	return c
}

// Submit uploads the video as a multipart form and returns the server-assigned session id.
// The body is streamed from r; when r is an io.Closer it is closed once the body has been consumed.
func (c *Client) Submit(ctx context.Context, name string, r io.Reader) (*analysisdto.SubmitResponse, error) {
	if r == nil {
		return nil, errors.New("nil upload reader")
	}
	if n, ok := sizeHint(r); ok && c.maxUploadBytes > 0 && n > c.maxUploadBytes {
		if closer, ok := r.(io.Closer); ok {
			closer.Close()
		}
		return nil, fmt.Errorf("%w: limit=%d", ErrUploadTooLarge, c.maxUploadBytes)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + "/api/upload")
	reqID := c.applyHeaders(req)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	req.Header.SetContentType(mw.FormDataContentType())
	// 크기를 모르므로 chunked 전송
	req.SetBodyStream(pr, -1)

	written := make(chan uploadResult, 1)
	go func() {
		n, err := c.writeUpload(mw, name, r)
		pw.CloseWithError(err)
		written <- uploadResult{n: n, err: err}
	}()

	doErr := c.http.DoDeadline(req, resp, computeDeadline(ctx, c.uploadTimeout))
	// 서버가 본문을 다 읽기 전에 응답한 경우 writer를 풀어준다
	pr.Close()
	up := <-written

	if up.err != nil && !errors.Is(up.err, io.ErrClosedPipe) {
		return nil, up.err
	}
	if doErr != nil {
		return nil, fmt.Errorf("upload request failed: %w", doErr)
	}

	c.logger.Debug("analyzer_upload",
		zap.String("request_id", reqID),
		zap.String("file", name),
		zap.Int64("bytes", up.n),
	)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out analysisdto.SubmitResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	out.SessionID = strings.TrimSpace(out.SessionID)
	if out.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	return &out, nil
}

type uploadResult struct {
	n   int64
	err error
}

// writeUpload copies r into a single file part and finishes the form. It enforces the size
// limit while copying, so an unsized reader is cut off as soon as it goes over.
func (c *Client) writeUpload(mw *multipart.Writer, name string, r io.Reader) (int64, error) {
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}
	part, err := mw.CreateFormFile(VideoField, uploadName(name))
	if err != nil {
		return 0, fmt.Errorf("create form file: %w", err)
	}
	src := r
	if c.maxUploadBytes > 0 {
		src = io.LimitReader(r, c.maxUploadBytes+1)
	}
	n, err := io.Copy(part, src)
	if err != nil {
		return n, fmt.Errorf("read upload: %w", err)
	}
	if c.maxUploadBytes > 0 && n > c.maxUploadBytes {
		return n, fmt.Errorf("%w: limit=%d", ErrUploadTooLarge, c.maxUploadBytes)
	}
	if err := mw.Close(); err != nil {
		return n, fmt.Errorf("finish multipart body: %w", err)
	}
	return n, nil
}

// sizeHint reports the remaining size of readers that know it up front.
func sizeHint(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		return fi.Size(), true
	case interface{ Len() int }:
		return int64(v.Len()), true
	}
	return 0, false
}

// FetchResult retrieves the final result for a session. A body that still reports
// an unfinished job is returned as ErrResultPending.
func (c *Client) FetchResult(ctx context.Context, sessionID string) (*analysisdto.ResultPayload, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/result/" + url.PathEscape(sessionID))
	req.Header.Set("Accept", "application/json")
	reqID := c.applyHeaders(req)

	c.logger.Debug("analyzer_fetch_result", zap.String("request_id", reqID), zap.String("session_id", sessionID))

	if err := c.http.DoDeadline(req, resp, computeDeadline(ctx, c.defaultTimeout)); err != nil {
		return nil, fmt.Errorf("result request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out analysisdto.ResultPayload
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if !out.Ready() {
		return nil, fmt.Errorf("%w: status=%s", ErrResultPending, out.Status)
	}
	return &out, nil
}

func (c *Client) applyHeaders(req *fasthttp.Request) string {
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	id := uuid.NewString()
	req.Header.Set("X-Request-Id", id)
	return id
}

func checkStatus(resp *fasthttp.Response) error {
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return &StatusError{Code: status, Body: truncate(string(resp.Body()), 512)}
	}
	return nil
}

func computeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	clientDL := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func uploadName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload.mp4"
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
