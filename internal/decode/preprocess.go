package decode

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultMinResolution is the working resolution the enhanced reader scales
// frames toward before decoding.
const DefaultMinResolution = 1200

const (
	contrastBoost   = 80
	brightnessBoost = 10
	// aboveThresholdScale still upscales frames that already meet the
	// minimum: over-scaling is cheap, under-scaling loses bars.
	aboveThresholdScale = 1.5
)

// ScaleFactor returns the upscale multiplier for a frame whose longer side
// is the given length.
func ScaleFactor(longerSide, minResolution int) float64 {
	if longerSide <= 0 {
		return 1
	}
	if minResolution <= 0 {
		minResolution = DefaultMinResolution
	}
	if longerSide < minResolution {
		return math.Ceil(float64(minResolution) / float64(longerSide))
	}
	return aboveThresholdScale
}

// Preprocess upscales, grayscales and boosts contrast/brightness the way a
// scanner overlay prepares a frame for a try-harder decode.
func Preprocess(img image.Image, minResolution int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := w
	if h > w {
		longer = h
	}
	scale := ScaleFactor(longer, minResolution)

	out := imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
	out = imaging.Grayscale(out)
	out = imaging.AdjustContrast(out, contrastBoost)
	out = imaging.AdjustBrightness(out, brightnessBoost)
	return out
}
