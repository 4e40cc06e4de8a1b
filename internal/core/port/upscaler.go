package port

import (
	"context"
	"image"
)

type Upscaler interface {
	// Upscale returns the image magnified by the given factor, falling back
	// across the available engines until one succeeds.
	Upscale(ctx context.Context, img image.Image, scale int) (image.Image, error)
	// PrimaryEngine returns the name of the most preferred available engine.
	PrimaryEngine() string
}
