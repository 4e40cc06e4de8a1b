package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"github.com/rs/zerolog"
)

// errNotAnImage marks a payload that could not be decoded; a validation
// error, surfaced as 4xx and never pushed into the engine chain.
var errNotAnImage = errors.New("payload is not a decodable image")

func (s *Server) process(ctx context.Context, l zerolog.Logger, payload []byte, scale int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNotAnImage, err)
	}

	l.Debug().
		Str("format", format).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("decoded input image")

	result, err := s.upscaler.Upscale(ctx, flattenRGB(img), scale)
	if err != nil {
		l.Error().Err(err).Msg("upscale failed")
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	return buf.Bytes(), nil
}

// flattenRGB composites the image over black into an opaque raster,
// discarding any alpha channel at the ingestion boundary.
func flattenRGB(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	rgb := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	draw.Draw(rgb, rgb.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, bounds.Min, draw.Over)

	return rgb
}
