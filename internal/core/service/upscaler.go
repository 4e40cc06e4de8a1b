package service

import (
	"context"
	"fmt"
	"image"

	"upscaled/internal/core/domain"
	"upscaled/internal/core/port"

	"github.com/rs/zerolog/log"
)

// Orchestrator walks a priority-ordered engine chain until one produces an
// upscaled image. The chain is built once at startup by ProbeEngines and is
// read-only afterwards, so concurrent requests share it without locking.
type Orchestrator struct {
	engines []port.Engine
}

func NewOrchestrator(engines []port.Engine) *Orchestrator {
	return &Orchestrator{engines: engines}
}

func (o *Orchestrator) PrimaryEngine() string {
	if len(o.engines) == 0 {
		return "none"
	}

	return o.engines[0].Name()
}

// Upscale normalizes the input and tries each engine in order. Engine
// failures are logged and absorbed by advancing the chain; any other error
// propagates unchanged. The terminal interpolation engine cannot fail for a
// valid image, so exhaustion of the chain is not expected in practice.
func (o *Orchestrator) Upscale(ctx context.Context, img image.Image, scale int) (image.Image, error) {
	if !domain.ScaleValid(scale) {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidScale, scale)
	}

	img = Normalize(img)

	bounds := img.Bounds()
	wantWidth := bounds.Dx() * scale
	wantHeight := bounds.Dy() * scale

	for _, engine := range o.engines {
		result, err := engine.Upscale(ctx, img, scale)
		if err != nil {
			if domain.IsEngineError(err) {
				log.Warn().Err(err).Str("engine", engine.Name()).Msg("engine failed, trying next")
				continue
			}

			return nil, err
		}

		got := result.Bounds()
		if got.Dx() != wantWidth || got.Dy() != wantHeight {
			log.Warn().
				Str("engine", engine.Name()).
				Int("width", got.Dx()).
				Int("height", got.Dy()).
				Int("wantWidth", wantWidth).
				Int("wantHeight", wantHeight).
				Msg("engine returned wrong dimensions, trying next")
			continue
		}

		log.Debug().Str("engine", engine.Name()).Int("scale", scale).Msg("upscale finished")

		return result, nil
	}

	return nil, domain.ErrProcessingFailed
}
