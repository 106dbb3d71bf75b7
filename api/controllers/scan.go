package controllers

import (
	"bytes"
	"image"
	"io"
	"net/http"
	"strings"

	// Frames arrive as browser canvas exports or picked files.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/responses"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/capture"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/decode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
)

// ScanResult is the answer to a one-shot image scan: what was read, where
// it came from and what the catalog says it is.
type ScanResult struct {
	Code         string         `json:"code"`
	Shape        string         `json:"shape"`
	CheckDigitOK bool           `json:"check_digit_ok"`
	Channel      string         `json:"channel"`
	Product      ledger.Product `json:"product"`
	Registered   bool           `json:"registered"`
}

// Scan decodes a barcode out of an uploaded image and resolves the product.
// Handles POST /api/scan with either a multipart "file" part or a raw image
// body. An optional "channel" form value distinguishes a picked file from a
// manual still capture.
func Scan(detector capture.Detector, catalog products.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if detector == nil || catalog == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		raw, channel, err := readScanUpload(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable image"))
			return
		}

		ctx := logg.WithChannel(r.Context(), string(channel))
		frame := decode.Frame{Image: img, Raw: raw, ContentType: r.Header.Get("Content-Type")}

		result, err := capture.DetectStill(ctx, detector, frame, channel)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		code, err := barcode.Normalize(result.Code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, err := catalog.FindByCode(ctx, code.Value)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithField(ctx, "code", code.Value), "still scan decoded")
		responses.WriteSuccess(w, ScanResult{
			Code:         code.Value,
			Shape:        string(code.Shape),
			CheckDigitOK: code.CheckDigitOK,
			Channel:      string(result.Channel),
			Product:      product,
			Registered:   product.Registered(),
		})
	}
}

func readScanUpload(r *http.Request) ([]byte, barcode.Channel, error) {
	channel := barcode.ChannelImageFile

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, channel, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "missing image upload")
		}
		defer file.Close()

		if v := r.FormValue("channel"); v == string(barcode.ChannelCameraStill) {
			channel = barcode.ChannelCameraStill
		}

		raw, err := io.ReadAll(file)
		if err != nil {
			return nil, channel, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading image upload")
		}
		return raw, channel, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, channel, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading image upload")
	}
	if len(raw) == 0 {
		return nil, channel, pkgerrors.New(pkgerrors.CodeValidation, "empty image upload")
	}
	return raw, channel, nil
}
