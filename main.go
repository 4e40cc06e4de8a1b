package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"upscaled/internal/adapters/engine"
	"upscaled/internal/adapters/handler"
	"upscaled/internal/core/port"
	"upscaled/internal/core/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	log.Info().Msg("starting upscaled...")

	viper.AddConfigPath(".")
	viper.SetConfigType("toml")

	log.Info().Msg("reading config file...")
	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not read config file")
	}

	var logLevel zerolog.Level

	switch viper.GetString("server.log_level") {
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	engines := service.ProbeEngines(engineBuilders(), engine.NewLanczos())
	defer func() {
		for _, e := range engines {
			e.Close()
		}
	}()

	orchestrator := service.NewOrchestrator(engines)
	log.Info().Str("engine", orchestrator.PrimaryEngine()).Msg("engine chain ready")

	maxUploadMB := viper.GetInt64("server.max_upload_mb")
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}

	srv := handler.NewServer(orchestrator, maxUploadMB<<20)

	listenPort := viper.GetString("server.port")
	if listenPort == "" {
		listenPort = "8000"
	}

	httpServer := &http.Server{
		Addr:              ":" + listenPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", listenPort).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// engineBuilders returns the preferred engines in the configured priority
// order. The interpolation fallback is not listed here; ProbeEngines always
// appends it.
func engineBuilders() []service.EngineBuilder {
	priorities := viper.GetStringSlice("upscaler.engines")
	if len(priorities) == 0 {
		priorities = []string{"onnx", "realesrgan"}
	}

	var builders []service.EngineBuilder

	for _, name := range priorities {
		switch name {
		case "onnx":
			builders = append(builders, service.EngineBuilder{
				Name: "onnx",
				Build: func() (port.Engine, error) {
					return engine.NewONNX(
						viper.GetString("onnx.model_path"),
						viper.GetString("onnx.library_path"))
				},
			})
		case "realesrgan":
			builders = append(builders, service.EngineBuilder{
				Name: "realesrgan",
				Build: func() (port.Engine, error) {
					timeout := viper.GetDuration("realesrgan.timeout")
					return engine.NewRealESRGAN(
						viper.GetString("realesrgan.binary_path"),
						viper.GetString("realesrgan.model_dir"),
						timeout)
				},
			})
		default:
			log.Warn().Str("engine", name).Msg("unknown engine in config, skipping")
		}
	}

	return builders
}
