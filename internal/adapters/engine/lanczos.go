package engine

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// Lanczos is the unconditional interpolation fallback. It produces exact
// target dimensions for any valid image and cannot fail, which is what lets
// the orchestrator guarantee a response even with no preferred engine.
type Lanczos struct{}

func NewLanczos() *Lanczos {
	return &Lanczos{}
}

func (l *Lanczos) Name() string {
	return "lanczos"
}

func (l *Lanczos) Upscale(_ context.Context, img image.Image, scale int) (image.Image, error) {
	bounds := img.Bounds()
	return imaging.Resize(img, bounds.Dx()*scale, bounds.Dy()*scale, imaging.Lanczos), nil
}

func (l *Lanczos) Close() {}
