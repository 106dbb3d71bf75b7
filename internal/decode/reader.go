package decode

import (
	"context"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// allowedFormats is the fixed symbology allow-list shared by both reader
// stages: retail codes plus the 1D formats in-house labels use.
var allowedFormats = []gozxing.BarcodeFormat{
	gozxing.BarcodeFormat_EAN_13,
	gozxing.BarcodeFormat_EAN_8,
	gozxing.BarcodeFormat_UPC_A,
	gozxing.BarcodeFormat_CODE_128,
	gozxing.BarcodeFormat_CODE_39,
	gozxing.BarcodeFormat_ITF,
}

// SymbologyReader decodes the raw frame directly. It is the fast, trusted
// stage and is only wired into the chain when the deployment enables it.
type SymbologyReader struct{}

func NewSymbologyReader() *SymbologyReader {
	return &SymbologyReader{}
}

func (r *SymbologyReader) Name() string { return "native" }

func (r *SymbologyReader) TryDecode(ctx context.Context, frame Frame) (string, error) {
	if frame.Image == nil {
		return "", nil
	}
	return readBitmap(frame.Image, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: allowedFormats,
	})
}

// EnhancedReader preprocesses the frame (upscale, grayscale, contrast and
// brightness boost) before a try-harder decode. Slower, but it recovers
// codes the raw pass misses on small or washed-out frames.
type EnhancedReader struct {
	minResolution int
}

func NewEnhancedReader(minResolution int) *EnhancedReader {
	if minResolution <= 0 {
		minResolution = DefaultMinResolution
	}
	return &EnhancedReader{minResolution: minResolution}
}

func (r *EnhancedReader) Name() string { return "enhanced" }

func (r *EnhancedReader) TryDecode(ctx context.Context, frame Frame) (string, error) {
	if frame.Image == nil {
		return "", nil
	}
	img := Preprocess(frame.Image, r.minResolution)
	return readBitmap(img, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER:       true,
		gozxing.DecodeHintType_POSSIBLE_FORMATS: allowedFormats,
	})
}

// readBitmap runs one gozxing pass. The reader keeps per-row state, so a
// fresh instance is built per call rather than shared across sessions.
func readBitmap(img image.Image, hints map[gozxing.DecodeHintType]interface{}) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	readers := []gozxing.Reader{
		oned.NewMultiFormatUPCEANReader(hints),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewITFReader(),
	}
	for _, reader := range readers {
		result, err := reader.Decode(bmp, hints)
		if err == nil {
			return result.GetText(), nil
		}
	}
	// NotFoundException and friends are an ordinary miss.
	return "", nil
}
