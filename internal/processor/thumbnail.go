package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/gif" // GIF format support
	_ "image/png" // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/mediagrab/internal/config"
	"go.uber.org/zap"
)

const (
	defaultThumbWidth  = 320
	defaultThumbHeight = 180
	jpegQuality        = 85
)

// ThumbnailProcessor scales cover art down for display next to an item
type ThumbnailProcessor struct {
	logger *zap.Logger
	width  int
	height int
}

// NewThumbnailProcessor creates a processor bounded by the configured thumbnail size
func NewThumbnailProcessor(logger *zap.Logger, cfg *config.AppConfig) *ThumbnailProcessor {
	w, h := cfg.Cover.ThumbWidth, cfg.Cover.ThumbHeight
	if w <= 0 {
		w = defaultThumbWidth
	}
	if h <= 0 {
		h = defaultThumbHeight
	}
	return &ThumbnailProcessor{logger: logger, width: w, height: h}
}

// Process decodes imageData and returns a JPEG that fits inside the
// thumbnail box, keeping the aspect ratio. Images that already fit are
// re-encoded without scaling.
func (p *ThumbnailProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, p.width, p.height, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	p.logger.Debug("Thumbnail created",
		zap.String("format", format),
		zap.Int("w", thumb.Bounds().Dx()),
		zap.Int("h", thumb.Bounds().Dy()),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
