package port

import (
	"context"
	"image"
)

type Engine interface {
	// Upscale magnifies the image by the given integer factor and returns the
	// result with dimensions exactly (width*scale, height*scale). Failures
	// local to the engine are wrapped in domain.EngineError so the caller can
	// advance its fallback chain.
	Upscale(ctx context.Context, img image.Image, scale int) (image.Image, error)
	// Name returns a short identifier used in logs and the health endpoint.
	Name() string
	// Close releases any process-wide resource the engine holds.
	Close()
}
