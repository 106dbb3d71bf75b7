// Package decode extracts barcode strings from still images. Detection is a
// ranked chain of strategies queried in priority order; a strategy that is
// unavailable or finds nothing falls through silently to the next, and only
// exhaustion of the whole chain reports a miss.
package decode

import (
	"context"
	"image"
	"time"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

// Frame is one still image handed to the chain. Raw carries the original
// encoded bytes when the caller still has them; the remote strategy submits
// those untouched rather than re-encoding the decoded pixels.
type Frame struct {
	Image       image.Image
	Raw         []byte
	ContentType string
}

// Strategy is one self-contained way of reading a barcode from a frame.
// A miss returns ("", nil); an error means the stage itself broke and the
// chain treats it as a miss.
type Strategy interface {
	Name() string
	TryDecode(ctx context.Context, frame Frame) (string, error)
}

// Chain tries strategies in rank order and returns the first hit.
type Chain struct {
	strategies []Strategy
	metrics    *metrics.ScanMetrics
}

// NewChain builds a chain over the given strategies. Nil strategies are
// skipped so callers can pass conditionally-constructed stages directly.
func NewChain(m *metrics.ScanMetrics, strategies ...Strategy) *Chain {
	kept := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{strategies: kept, metrics: m}
}

// Strategies exposes the ranked stage names, in order.
func (c *Chain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Decode runs the chain. It returns ("", nil) when every stage missed and an
// error only when the context is done.
func (c *Chain) Decode(ctx context.Context, frame Frame) (string, error) {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		code, err := s.TryDecode(ctx, frame)
		hit := err == nil && code != ""
		c.metrics.ObserveAttempt(s.Name(), time.Since(start), hit)
		if hit {
			return code, nil
		}
		// A broken stage is indistinguishable from a miss for the caller;
		// the next stage gets its chance.
	}
	return "", nil
}
