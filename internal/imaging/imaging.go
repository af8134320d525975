// Package imaging normalizes captured images before extraction
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"regexp"

	_ "image/gif"  // Register GIF format
	_ "image/png"  // Register PNG format

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// StripDataURL removes a data-URL prefix from a base64 image payload
func StripDataURL(payload string) string {
	return dataURLPrefix.ReplaceAllString(payload, "")
}

// Optimizer downscales and recompresses images to shrink extraction payloads.
// It is best-effort: every failure path returns the original payload.
type Optimizer struct {
	maxWidth int
	quality  int
	logger   *zap.Logger
}

// NewOptimizer creates an optimizer with the given target width and JPEG quality
func NewOptimizer(maxWidth, quality int, logger *zap.Logger) *Optimizer {
	if maxWidth <= 0 {
		maxWidth = 600
	}
	if quality < 1 || quality > 100 {
		quality = 50
	}
	return &Optimizer{
		maxWidth: maxWidth,
		quality:  quality,
		logger:   logger,
	}
}

// Optimize strips any data-URL prefix, downscales the image to the target
// width, and re-encodes it as JPEG. If decoding or encoding fails, or the
// result is not smaller than the input, the cleaned original is returned.
// Pre-processing never blocks the pipeline.
func (o *Optimizer) Optimize(payload string) string {
	cleaned := StripDataURL(payload)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		o.logger.Warn("Image payload is not valid base64, passing through", zap.Error(err))
		return cleaned
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		o.logger.Warn("Image decode failed, passing through", zap.Error(err))
		return cleaned
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > o.maxWidth {
		height = height * o.maxWidth / width
		width = o.maxWidth
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: o.quality}); err != nil {
		o.logger.Warn("JPEG re-encode failed, passing through", zap.Error(err))
		return cleaned
	}

	if buf.Len() >= len(raw) {
		o.logger.Debug("Optimization did not reduce size, using original",
			zap.Int("original_bytes", len(raw)),
			zap.Int("optimized_bytes", buf.Len()),
			zap.String("format", format),
		)
		return cleaned
	}

	o.logger.Debug("Image optimized",
		zap.Int("original_bytes", len(raw)),
		zap.Int("optimized_bytes", buf.Len()),
		zap.Int("width", width),
	)

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
