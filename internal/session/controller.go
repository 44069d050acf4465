package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Video-Analyzer/internal/analyzerapi"
	"github.com/park285/Cheese-Video-Analyzer/internal/artifact"
	"github.com/park285/Cheese-Video-Analyzer/internal/gamerecord"
	"github.com/park285/Cheese-Video-Analyzer/pkg/analysisdto"
)

const (
	releaseTimeout = 5 * time.Second
	recordTimeout  = 5 * time.Second
	previewName    = "board.png"
)

// API is the submission and result side of the analyzer backend.
type API interface {
	Submit(ctx context.Context, name string, r io.Reader) (*analysisdto.SubmitResponse, error)
	FetchResult(ctx context.Context, sessionID string) (*analysisdto.ResultPayload, error)
}

type ChangeCallback func(State)

type changeEntry struct {
	id       int
	callback ChangeCallback
}

// Controller owns the lifecycle of one analysis session at a time.
// All mutations go through mu; network calls run outside it.
type Controller struct {
	api      API
	streamer analyzerapi.Streamer
	store    artifact.Store
	logger   *zap.Logger
	recorder Recorder
	preview  PreviewRenderer

	recordName string

	mu     sync.Mutex
	cur    *liveSession
	closed bool
	seq    uint64

	cbM      sync.RWMutex
	cbs      []changeEntry
	nextCbID int

	bg sync.WaitGroup

	// changed is closed and replaced after every delivered snapshot; guarded by emitM.
	emitM   sync.Mutex
	emitted uint64
	changed chan struct{}
}

// liveSession is one submission. Handlers compare against Controller.cur so that a
// superseded session can never touch the current state.
type liveSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	state State

	sub       analyzerapi.Subscription
	subClosed bool
}

func (s *liveSession) closeSub() {
	if s.sub != nil && !s.subClosed {
		s.sub.Close()
	}
	s.subClosed = true
}

func New(api API, streamer analyzerapi.Streamer, store artifact.Store, opts ...Option) *Controller {
	if store == nil {
		store = artifact.NewMemoryStore()
	}
	c := &Controller{
		api:        api,
		streamer:   streamer,
		store:      store,
		logger:     zap.NewNop(),
		recordName: "game.pgn",
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts a new session for in, tearing down any previous one first.
// It blocks for the upload and returns once the live update channel is attached.
func (c *Controller) Submit(ctx context.Context, in *Input) (string, error) {
	if err := in.validate(); err != nil {
		return "", newError(KindValidation, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	stale := c.detachLocked()
	s := &liveSession{state: State{Status: StatusUploading, Moves: []string{}}}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	c.cur = s
	snap := c.commitLocked(s)
	c.mu.Unlock()

	c.release(stale)
	c.emit(snap)
	c.logger.Info("session_submit", zap.String("file", in.Name), zap.Int64("size", in.Size))

	upCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	resp, err := c.api.Submit(upCtx, in.Name, in.Reader)
	stop()
	cancel()

	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return "", ErrSuperseded
	}
	if err != nil {
		serr := newError(KindSubmission, err)
		s.state.Status = StatusFailed
		s.state.Err = serr
		snap = c.commitLocked(s)
		c.mu.Unlock()
		c.logger.Warn("session_submit_error", zap.Error(err))
		c.emit(snap)
		return "", serr
	}
	id := resp.SessionID
	s.state.SessionID = id
	s.state.Status = StatusStreaming
	s.state.Progress = 0
	snap = c.commitLocked(s)
	c.mu.Unlock()

	c.logger.Info("session_submitted", zap.String("session_id", id))
	c.emit(snap)

	sub, err := c.streamer.Subscribe(s.ctx, id, analyzerapi.Handlers{
		OnFrame: func(data []byte) { c.onFrame(s, data) },
		OnError: func(err error) { c.onStreamError(s, err) },
	})
	if err != nil {
		c.onStreamError(s, err)
		return id, nil
	}

	c.mu.Lock()
	if c.cur != s || s.subClosed || s.state.Status != StatusStreaming {
		// 이미 종료된 세션에 붙은 구독은 바로 닫는다
		c.mu.Unlock()
		sub.Close()
		return id, nil
	}
	s.sub = sub
	c.mu.Unlock()
	return id, nil
}

func (c *Controller) accepting(s *liveSession) bool {
	return c.cur == s && !s.subClosed && s.state.Status == StatusStreaming
}

func (c *Controller) onFrame(s *liveSession, data []byte) {
	var f analysisdto.ProgressFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Debug("session_frame_ignored", zap.Error(err))
		return
	}

	c.mu.Lock()
	if !c.accepting(s) {
		c.mu.Unlock()
		return
	}
	changed := false
	if f.Progress != nil {
		if p := clampProgress(*f.Progress); p > s.state.Progress {
			s.state.Progress = p
			changed = true
		}
	}
	startFetch := false
	if f.Done() {
		s.state.Progress = 100
		s.state.Fetching = true
		// 구독을 닫아 두 번째 done 프레임으로 조회가 중복되지 않게 한다
		s.closeSub()
		startFetch = true
		changed = true
	} else if f.Status != "" {
		c.logger.Debug("session_frame_status",
			zap.String("session_id", s.state.SessionID),
			zap.String("status", f.Status),
			zap.String("message", f.Message),
		)
	}
	if !changed {
		c.mu.Unlock()
		return
	}
	snap := c.commitLocked(s)
	c.mu.Unlock()

	c.emit(snap)
	if startFetch {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			c.fetchResult(s, snap.SessionID)
		}()
	}
}

func (c *Controller) onStreamError(s *liveSession, err error) {
	c.mu.Lock()
	if !c.accepting(s) {
		c.mu.Unlock()
		return
	}
	s.closeSub()
	s.state.Status = StatusFailed
	s.state.Err = newError(KindStream, err)
	snap := c.commitLocked(s)
	c.mu.Unlock()

	c.logger.Warn("session_stream_error", zap.String("session_id", snap.SessionID), zap.Error(err))
	c.emit(snap)
}

func (c *Controller) fetchResult(s *liveSession, id string) {
	var (
		rec     gamerecord.Record
		summary gamerecord.Summary
		record  *artifact.Artifact
		preview *artifact.Artifact
	)
	payload, err := c.api.FetchResult(s.ctx, id)
	if err == nil {
		rec = gamerecord.FromPayload(payload)
		record, err = c.store.Put(s.ctx, c.recordName, gamerecord.ContentType, []byte(rec.PGN))
		if err != nil {
			err = fmt.Errorf("materialize game record: %w", err)
		}
	}
	if err == nil {
		summary = gamerecord.Summarize(rec.Moves)
		preview = c.renderPreview(s.ctx, id, rec.Moves)
	}

	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		c.release([]*artifact.Artifact{record, preview})
		return
	}
	s.state.Fetching = false
	if err != nil {
		s.state.Status = StatusFailed
		s.state.Moves = []string{}
		s.state.Err = newError(KindResultFetch, err)
	} else {
		s.state.Status = StatusDone
		s.state.Moves = rec.Moves
		s.state.Artifact = record
		s.state.Preview = preview
		s.state.Summary = summary
		s.state.Synthesized = rec.Synthesized
	}
	snap := c.commitLocked(s)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("result_fetch_error", zap.String("session_id", id), zap.Error(err))
	} else {
		c.logger.Info("session_done",
			zap.String("session_id", id),
			zap.Int("moves", len(rec.Moves)),
			zap.Int("legal", summary.Legal),
			zap.Bool("synthesized", rec.Synthesized),
			zap.Bool("empty_record", rec.Empty()),
		)
	}
	c.emit(snap)

	if err == nil {
		c.archive(s.ctx, id, rec, summary)
	}
}

func (c *Controller) renderPreview(ctx context.Context, id string, moves []string) *artifact.Artifact {
	if c.preview == nil || len(moves) == 0 {
		return nil
	}
	png, err := c.preview.RenderMoves(ctx, moves)
	if err != nil {
		c.logger.Warn("preview_error", zap.String("session_id", id), zap.Error(err))
		return nil
	}
	a, err := c.store.Put(ctx, previewName, "image/png", png)
	if err != nil {
		c.logger.Warn("preview_error", zap.String("session_id", id), zap.Error(err))
		return nil
	}
	return a
}

// archive runs after the done transition so a slow recorder never holds it back.
// It is cancelled together with the session.
func (c *Controller) archive(parent context.Context, id string, rec gamerecord.Record, summary gamerecord.Summary) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, recordTimeout)
	defer cancel()
	err := c.recorder.Record(ctx, Completed{
		SessionID:   id,
		Moves:       append([]string(nil), rec.Moves...),
		PGN:         rec.PGN,
		Summary:     summary,
		CompletedAt: time.Now(),
	})
	if err != nil {
		c.logger.Warn("archive_error", zap.String("session_id", id), zap.Error(err))
	}
}

// Reset discards the current session and returns to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	stale := c.detachLocked()
	snap := c.idleLocked()
	c.mu.Unlock()

	c.release(stale)
	c.emit(snap)
	c.logger.Debug("session_reset")
}

// Close resets and stops accepting submissions.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	stale := c.detachLocked()
	snap := c.idleLocked()
	c.mu.Unlock()

	c.release(stale)
	c.emit(snap)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		st := idleState()
		st.seq = c.seq
		return st
	}
	return c.cur.state.clone()
}

// Wait blocks until the current session is terminal and its terminal snapshot has been
// delivered to every observer. It returns ErrNoSession when the controller is idle.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	for {
		// 상태를 읽기 전에 채널을 잡아야 그 사이의 전달을 놓치지 않는다
		c.emitM.Lock()
		ch := c.changed
		c.emitM.Unlock()

		c.mu.Lock()
		if c.cur == nil {
			c.mu.Unlock()
			return idleState(), ErrNoSession
		}
		st := c.cur.state.clone()
		c.mu.Unlock()

		c.emitM.Lock()
		delivered := st.seq <= c.emitted
		c.emitM.Unlock()
		if st.Status.Terminal() && delivered {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case <-ch:
		}
	}
}

// Flush waits for background work of finished sessions, such as archiving, to complete.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Download copies the game record of a finished session to w.
func (c *Controller) Download(ctx context.Context, w io.Writer) error {
	return c.copyArtifact(ctx, w, func(st *State) *artifact.Artifact { return st.Artifact })
}

// DownloadPreview copies the final-position image of a finished session to w.
func (c *Controller) DownloadPreview(ctx context.Context, w io.Writer) error {
	return c.copyArtifact(ctx, w, func(st *State) *artifact.Artifact { return st.Preview })
}

func (c *Controller) copyArtifact(ctx context.Context, w io.Writer, pick func(*State) *artifact.Artifact) error {
	c.mu.Lock()
	if c.cur == nil || c.cur.state.Status != StatusDone || pick(&c.cur.state) == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	a := *pick(&c.cur.state)
	c.mu.Unlock()

	rc, err := c.store.Open(ctx, &a)
	if errors.Is(err, artifact.ErrNotFound) {
		return ErrNotReady
	}
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

// OnChange registers cb to receive every new snapshot. Callbacks run on the goroutine that
// caused the change and must not block.
func (c *Controller) OnChange(cb ChangeCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.cbs = append(c.cbs, changeEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Controller) RemoveChangeCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.cbs {
		if cb.id == id {
			c.cbs = append(c.cbs[:i], c.cbs[i+1:]...)
			break
		}
	}
}

// detachLocked closes the current session's subscription and cancels its in-flight calls.
// The returned artifacts must be released after unlocking.
func (c *Controller) detachLocked() []*artifact.Artifact {
	s := c.cur
	if s == nil {
		return nil
	}
	s.closeSub()
	s.cancel()
	c.cur = nil
	return []*artifact.Artifact{s.state.Artifact, s.state.Preview}
}

func (c *Controller) idleLocked() State {
	c.seq++
	st := idleState()
	st.seq = c.seq
	return st
}

func (c *Controller) commitLocked(s *liveSession) State {
	c.seq++
	s.state.seq = c.seq
	return s.state.clone()
}

// emit fans a snapshot out to observers. Snapshots older than the last delivered one are dropped,
// so observers always see states in mutation order.
func (c *Controller) emit(st State) {
	c.emitM.Lock()
	defer c.emitM.Unlock()
	if st.seq <= c.emitted {
		return
	}
	c.emitted = st.seq

	c.cbM.RLock()
	callbacks := make([]changeEntry, len(c.cbs))
	copy(callbacks, c.cbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(st)
		}
	}
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller) release(list []*artifact.Artifact) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	for _, a := range list {
		if a == nil {
			continue
		}
		if err := c.store.Release(ctx, a); err != nil {
			c.logger.Warn("artifact_release_error", zap.String("key", a.Key), zap.Error(err))
		}
	}
}

func clampProgress(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 100 {
		return 100
	}
	return int(math.Floor(v))
}
