// Package capture runs the live scanning loop. A session acquires a frame
// source, polls it at a fixed cadence and runs one detection pass at a time
// until something is found, the session times out or the client closes it.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/decode"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

// State names the lifecycle phase a session is in.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateStreaming State = "streaming"
	StateDetecting State = "detecting"
	StateError     State = "error"
	StateClosed    State = "closed"
)

// FrameSource hands out frames from an attached device. NextFrame blocks
// until a frame is available or the context ends.
type FrameSource interface {
	NextFrame(ctx context.Context) (decode.Frame, error)
	Close() error
}

// SourceOpener attaches to a device and yields its frame source. Opening is
// the step that can fail with a device error.
type SourceOpener interface {
	Open(ctx context.Context) (FrameSource, error)
}

// Detector runs one detection pass over a frame. A miss is ("", nil).
type Detector interface {
	Detect(ctx context.Context, frame decode.Frame) (string, error)
}

// Result is a successful live detection.
type Result struct {
	Code    string
	Channel barcode.Channel
	// Vibrate asks the client for a haptic tick on delivery.
	Vibrate bool
}

// Config tunes the polling loop.
type Config struct {
	FrameInterval  time.Duration
	SessionTimeout time.Duration
}

const defaultFrameInterval = 16 * time.Millisecond

// Session owns one live capture lifecycle. Run is called exactly once;
// Close may be called any number of times from any goroutine.
type Session struct {
	id       string
	opener   SourceOpener
	detector Detector
	cfg      Config
	log      *logger.Logger
	metrics  *metrics.ScanMetrics

	snapshotReq chan chan decode.Frame
	done        chan struct{}

	mu     sync.Mutex
	state  State
	closed bool
	source FrameSource
	cancel context.CancelFunc
}

func NewSession(id string, opener SourceOpener, detector Detector, cfg Config, log *logger.Logger, m *metrics.ScanMetrics) *Session {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	return &Session{
		id:          id,
		opener:      opener,
		detector:    detector,
		cfg:         cfg,
		log:         log,
		metrics:     m,
		state:       StateIdle,
		snapshotReq: make(chan chan decode.Frame),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to completion and returns the detection result.
// A zero Result with a nil error means the session ended without finding
// anything: closed by the client, timed out, or the parent context ended.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, nil
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return Result{}, pkgerrors.New(pkgerrors.CodeConflict, "capture session is already running")
	}
	s.state = StateAcquiring
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.cfg.SessionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.SessionTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	ctx = s.log.WithSessionID(ctx, s.id)
	s.log.Debug(ctx, "acquiring frame source")

	source, err := s.opener.Open(runCtx)
	if err != nil {
		s.fail()
		s.Close()
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDevice, err, "acquiring frame source")
	}

	s.mu.Lock()
	if s.closed {
		// Close raced the device open. Release it and end quietly.
		s.mu.Unlock()
		source.Close()
		return Result{}, nil
	}
	s.source = source
	s.state = StateStreaming
	s.mu.Unlock()

	s.log.Info(ctx, "capture session streaming")

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			s.Close()
			return Result{}, nil
		case <-ticker.C:
		}

		if s.isClosed() {
			return Result{}, nil
		}

		s.setState(StateDetecting)
		frame, err := source.NextFrame(runCtx)
		if err != nil {
			if runCtx.Err() != nil || s.isClosed() {
				s.Close()
				return Result{}, nil
			}
			s.fail()
			s.Close()
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDevice, err, "reading frame")
		}

		// A pending snapshot takes this frame instead of the detector.
		select {
		case reply := <-s.snapshotReq:
			reply <- frame
			s.setState(StateStreaming)
			continue
		default:
		}

		code, err := s.detector.Detect(runCtx, frame)
		if err != nil {
			// One bad frame does not end the session.
			s.log.Warn(ctx, fmt.Sprintf("detection pass failed: %v", err))
			s.setState(StateStreaming)
			continue
		}
		if code == "" {
			s.setState(StateStreaming)
			continue
		}

		if s.isClosed() {
			// The client left while we were detecting; drop the result.
			return Result{}, nil
		}
		s.log.Info(s.log.WithChannel(ctx, string(barcode.ChannelCameraLive)), "live detection hit")
		s.Close()
		return Result{
			Code:    code,
			Channel: barcode.ChannelCameraLive,
			Vibrate: true,
		}, nil
	}
}

// Snapshot diverts the next frame out of the loop without detection, for
// callers that want to push a still through the full one-shot pipeline.
func (s *Session) Snapshot(ctx context.Context) (decode.Frame, error) {
	reply := make(chan decode.Frame, 1)
	select {
	case s.snapshotReq <- reply:
	case <-s.done:
		return decode.Frame{}, pkgerrors.New(pkgerrors.CodeConflict, "capture session is closed")
	case <-ctx.Done():
		return decode.Frame{}, ctx.Err()
	}
	select {
	case frame := <-reply:
		return frame, nil
	case <-s.done:
		return decode.Frame{}, pkgerrors.New(pkgerrors.CodeConflict, "capture session is closed")
	case <-ctx.Done():
		return decode.Frame{}, ctx.Err()
	}
}

// Close tears the session down: stops the loop, releases the device and
// marks the session so late detection results are discarded. Safe to call
// repeatedly and from any goroutine.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.state != StateError {
		s.state = StateClosed
	}
	cancel := s.cancel
	source := s.source
	s.source = nil
	s.mu.Unlock()

	close(s.done)
	if cancel != nil {
		cancel()
	}

	var errs error
	if source != nil {
		if err := source.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("closing frame source: %w", err))
		}
	}
	return errs
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = state
}

func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = StateError
}
