package capture

import (
	"context"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/decode"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

// DetectorFunc adapts a plain function to the Detector interface, which is
// how the decode chain gets wired in.
type DetectorFunc func(ctx context.Context, frame decode.Frame) (string, error)

func (f DetectorFunc) Detect(ctx context.Context, frame decode.Frame) (string, error) {
	return f(ctx, frame)
}

// DetectStill runs one detection pass over an already-captured frame,
// outside any live session. Unlike the live loop, a miss here is an error
// the caller reports to the operator.
func DetectStill(ctx context.Context, det Detector, frame decode.Frame, channel barcode.Channel) (Result, error) {
	code, err := det.Detect(ctx, frame)
	if err != nil {
		return Result{}, err
	}
	if code == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "no barcode found in image")
	}
	return Result{Code: code, Channel: channel}, nil
}
