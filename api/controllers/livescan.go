package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/capture"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/decode"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// Idle budget for the next frame from the peer.
	wsReadWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The scanner page may be served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// scanEvent is what the session pushes back over the socket.
type scanEvent struct {
	Type         string `json:"type"`
	Code         string `json:"code,omitempty"`
	Shape        string `json:"shape,omitempty"`
	CheckDigitOK bool   `json:"check_digit_ok,omitempty"`
	Channel      string `json:"channel,omitempty"`
	Vibrate      bool   `json:"vibrate,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	Message      string `json:"message,omitempty"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// LiveScan runs a capture session over a websocket: the client streams
// binary image frames in, the server answers with detection events. A text
// frame {"type":"close"} ends the session; {"type":"still"} diverts the
// next frame through the full one-shot chain including remote decode.
// Handles GET /ws/scan.
func LiveScan(liveDetector, stillDetector capture.Detector, cfg capture.Config, maxFrameBytes int64, m *metrics.ScanMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			logg.Warn(r.Context(), "websocket upgrade failed: "+err.Error())
			return
		}

		source := newWSSource(conn, maxFrameBytes)
		sess := capture.NewSession(uuid.NewString(), staticOpener{source}, liveDetector, cfg, logg, m)
		ctx := logg.WithSessionID(r.Context(), sess.ID())

		source.onClose = func() { sess.Close() }
		source.onStill = func() {
			go func() {
				stillCtx, cancel := context.WithTimeout(ctx, wsReadWait)
				defer cancel()
				frame, err := sess.Snapshot(stillCtx)
				if err != nil {
					return
				}
				res, err := capture.DetectStill(stillCtx, stillDetector, frame, barcode.ChannelCameraStill)
				if err != nil {
					source.writeJSON(errorEvent(err))
					return
				}
				source.writeJSON(detectionEvent(res, logg, stillCtx))
			}()
		}

		// Session teardown only unblocks the reader; the connection stays
		// writable so the final event can still go out.
		defer conn.Close()

		result, err := sess.Run(r.Context())
		switch {
		case err != nil:
			source.writeJSON(errorEvent(err))
		case result.Code != "":
			source.writeJSON(detectionEvent(result, logg, ctx))
		}
	}
}

func detectionEvent(res capture.Result, logg *logger.Logger, ctx context.Context) scanEvent {
	code, err := barcode.Normalize(res.Code)
	if err != nil {
		return errorEvent(err)
	}
	logg.Info(logg.WithChannel(logg.WithField(ctx, "code", code.Value), string(res.Channel)), "scan detected")
	return scanEvent{
		Type:         "detected",
		Code:         code.Value,
		Shape:        string(code.Shape),
		CheckDigitOK: code.CheckDigitOK,
		Channel:      string(res.Channel),
		Vibrate:      res.Vibrate,
	}
}

func errorEvent(err error) scanEvent {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	msg := meta.PublicMessage
	if typed.Code() != pkgerrors.CodeInternal {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}
	return scanEvent{Type: "error", ErrorCode: string(typed.Code()), Message: msg}
}

type staticOpener struct {
	source capture.FrameSource
}

func (o staticOpener) Open(ctx context.Context) (capture.FrameSource, error) {
	return o.source, nil
}

// wsSource adapts a websocket connection into a capture.FrameSource.
// Binary messages are frames; text messages are control.
type wsSource struct {
	conn          *websocket.Conn
	maxFrameBytes int64

	onClose func()
	onStill func()

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSSource(conn *websocket.Conn, maxFrameBytes int64) *wsSource {
	conn.SetReadLimit(maxFrameBytes)
	return &wsSource{conn: conn, maxFrameBytes: maxFrameBytes}
}

func (s *wsSource) NextFrame(ctx context.Context) (decode.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return decode.Frame{}, err
		}
		s.conn.SetReadDeadline(time.Now().Add(wsReadWait))
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return decode.Frame{}, err
		}

		switch msgType {
		case websocket.BinaryMessage:
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				// A frame we cannot parse is dropped, not fatal.
				continue
			}
			return decode.Frame{Image: img, Raw: data}, nil
		case websocket.TextMessage:
			var ctl controlMessage
			if err := json.Unmarshal(data, &ctl); err != nil {
				continue
			}
			switch ctl.Type {
			case "close":
				if s.onClose != nil {
					s.onClose()
				}
			case "still":
				if s.onStill != nil {
					s.onStill()
				}
			}
		}
	}
}

// Close releases the source from the session's point of view: it forces any
// pending read to return without tearing the websocket down, so the closing
// event can still be written.
func (s *wsSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.SetReadDeadline(time.Now())
	})
	return s.closeErr
}

func (s *wsSource) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}
