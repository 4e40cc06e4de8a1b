package service

import (
	"upscaled/internal/core/port"

	"github.com/rs/zerolog/log"
)

// EngineBuilder constructs one engine during the startup probe. Build is
// expected to fail cleanly when the engine's dependency (model file, shared
// library, external binary) is absent.
type EngineBuilder struct {
	Name  string
	Build func() (port.Engine, error)
}

// ProbeEngines attempts each builder in priority order and returns the chain
// of engines that initialized, with the unconditional fallback appended
// last. A builder failure is a warning, never fatal: with zero preferred
// engines the service still runs in degraded mode, serving every request
// through the fallback. Called exactly once at startup; the returned chain
// must not be mutated afterwards.
func ProbeEngines(builders []EngineBuilder, fallback port.Engine) []port.Engine {
	engines := make([]port.Engine, 0, len(builders)+1)

	for _, builder := range builders {
		engine, err := builder.Build()
		if err != nil {
			log.Warn().Err(err).Str("engine", builder.Name).Msg("engine unavailable, trying next")
			continue
		}

		log.Info().Str("engine", engine.Name()).Msg("engine initialized")
		engines = append(engines, engine)
	}

	if len(engines) == 0 {
		log.Warn().Msg("no preferred engine available, serving interpolation only")
	}

	return append(engines, fallback)
}
