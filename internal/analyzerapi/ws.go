package analyzerapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// WSStreamer reads one JSON text message per progress frame. It never reconnects.
type WSStreamer struct {
	wsURL string
	opts  streamOptions
}

func (s *WSStreamer) Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	streamCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel, h)
	go s.run(streamCtx, sessionID, sub)
	return sub, nil
}

func (s *WSStreamer) run(ctx context.Context, sessionID string, sub *subscription) {
	defer close(sub.done)
	defer sub.cancel()

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, s.wsURL+progressPath(url.PathEscape(sessionID)), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      buildHeaders(s.opts.headers),
	})
	cancel()
	if err != nil {
		sub.fail(fmt.Errorf("dial progress socket: %w", err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "close")

	s.opts.logger.Debug("ws_stream_open", zap.String("session_id", sessionID))
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				sub.fail(ErrStreamEnded)
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			sub.fail(fmt.Errorf("read progress socket: %w", err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		sub.frame(data)
	}
}
