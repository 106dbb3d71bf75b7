package decode

import (
	"context"
	"errors"
	"image"
	"testing"
)

type stubStrategy struct {
	name  string
	code  string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) TryDecode(ctx context.Context, frame Frame) (string, error) {
	s.calls++
	return s.code, s.err
}

func testFrame() Frame {
	return Frame{Image: image.NewGray(image.Rect(0, 0, 8, 8))}
}

func TestChainFirstHitWins(t *testing.T) {
	first := &stubStrategy{name: "native", code: "4901234567894"}
	second := &stubStrategy{name: "enhanced", code: "should-not-run"}
	chain := NewChain(nil, first, second)

	code, err := chain.Decode(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if code != "4901234567894" {
		t.Fatalf("unexpected code %q", code)
	}
	if second.calls != 0 {
		t.Fatalf("later stage ran after a hit")
	}
}

func TestChainFallsThroughMissesAndFailures(t *testing.T) {
	miss := &stubStrategy{name: "native"}
	broken := &stubStrategy{name: "enhanced", err: errors.New("decoder blew up")}
	last := &stubStrategy{name: "remote", code: "AB-99_1"}
	chain := NewChain(nil, miss, broken, last)

	code, err := chain.Decode(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if code != "AB-99_1" {
		t.Fatalf("expected remote stage to win, got %q", code)
	}
	if miss.calls != 1 || broken.calls != 1 || last.calls != 1 {
		t.Fatalf("expected every stage to run exactly once: %d %d %d", miss.calls, broken.calls, last.calls)
	}
}

func TestChainExhaustionIsAMissNotAnError(t *testing.T) {
	chain := NewChain(nil, &stubStrategy{name: "native"}, &stubStrategy{name: "enhanced"})

	code, err := chain.Decode(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if code != "" {
		t.Fatalf("expected miss, got %q", code)
	}
}

func TestChainSkipsNilStrategies(t *testing.T) {
	chain := NewChain(nil, nil, &stubStrategy{name: "enhanced", code: "X"})
	if got := len(chain.Strategies()); got != 1 {
		t.Fatalf("expected nil strategy to be dropped, got %d stages", got)
	}
	code, err := chain.Decode(context.Background(), testFrame())
	if err != nil || code != "X" {
		t.Fatalf("unexpected result %q %v", code, err)
	}
}

func TestUnconfiguredRemoteClientIsAMiss(t *testing.T) {
	var remote *RemoteClient
	code, err := remote.TryDecode(context.Background(), Frame{Raw: []byte("x")})
	if err != nil || code != "" {
		t.Fatalf("nil client should miss, got %q %v", code, err)
	}
}

func TestChainHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage := &stubStrategy{name: "native", code: "hit"}
	chain := NewChain(nil, stage)

	if _, err := chain.Decode(ctx, testFrame()); err == nil {
		t.Fatal("expected context error")
	}
	if stage.calls != 0 {
		t.Fatal("stage ran after cancellation")
	}
}

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		name   string
		longer int
		want   float64
	}{
		{name: "well below threshold", longer: 300, want: 4},
		{name: "just below threshold", longer: 1100, want: 2},
		{name: "at threshold", longer: 1200, want: 1.5},
		{name: "above threshold", longer: 4000, want: 1.5},
		{name: "degenerate", longer: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleFactor(tt.longer, DefaultMinResolution); got != tt.want {
				t.Fatalf("ScaleFactor(%d) = %v, want %v", tt.longer, got, tt.want)
			}
		})
	}
}

func TestPreprocessUpscales(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 400, 300))
	out := Preprocess(src, DefaultMinResolution)
	if got := out.Bounds().Dx(); got != 1200 {
		t.Fatalf("expected width 1200 after x3 upscale, got %d", got)
	}
	if got := out.Bounds().Dy(); got != 900 {
		t.Fatalf("expected height 900 after x3 upscale, got %d", got)
	}
}
