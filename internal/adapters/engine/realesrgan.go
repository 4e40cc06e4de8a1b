package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"time"

	"upscaled/internal/adapters/file"
	"upscaled/internal/core/domain"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const DefaultBinaryTimeout = 60 * time.Second

// RealESRGAN shells out to the realesrgan-ncnn-vulkan binary, staging the
// image through uniquely named temp files. Unique names make concurrent
// invocations safe without locking; both files are removed on every exit
// path, including timeouts.
type RealESRGAN struct {
	binaryPath string
	modelDir   string
	timeout    time.Duration
}

// NewRealESRGAN verifies the upscaler binary exists at the given path. A
// zero timeout falls back to DefaultBinaryTimeout.
func NewRealESRGAN(binaryPath, modelDir string, timeout time.Duration) (*RealESRGAN, error) {
	info, err := os.Stat(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("upscaler binary not available: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("upscaler binary path is a directory: %s", binaryPath)
	}

	if timeout <= 0 {
		timeout = DefaultBinaryTimeout
	}

	log.Debug().Str("path", binaryPath).Msg("upscaler binary found")

	return &RealESRGAN{binaryPath: binaryPath, modelDir: modelDir, timeout: timeout}, nil
}

func (r *RealESRGAN) Name() string {
	return "realesrgan"
}

func (r *RealESRGAN) Upscale(ctx context.Context, img image.Image, scale int) (image.Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("encoding input: %w", err))
	}

	inPath, err := file.SaveTempFile(buf.Bytes(), ".png")
	if err != nil {
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("staging input: %w", err))
	}
	defer file.RemoveTempFile(inPath)

	outPath, err := file.TempPath(".png")
	if err != nil {
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("staging output: %w", err))
	}
	defer file.RemoveTempFile(outPath)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	model := domain.ModelForScale(scale)
	args := []string{"-i", inPath, "-o", outPath, "-n", model, "-s", strconv.Itoa(scale), "-f", "png"}
	if r.modelDir != "" {
		args = append(args, "-m", r.modelDir)
	}

	cmd := exec.CommandContext(ctx, r.binaryPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewEngineError(r.Name(), fmt.Errorf("timed out after %s", r.timeout))
		}

		log.Error().Bytes("output", out).Str("model", model).Msg("upscaler binary failed")
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("running binary: %w", err))
	}

	data, err := file.GetTempFile(outPath)
	if err != nil {
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("missing output file: %w", err))
	}

	result, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewEngineError(r.Name(), fmt.Errorf("decoding output: %w", err))
	}

	log.Debug().Str("model", model).Int("scale", scale).Msg("upscaler binary finished")

	// owned copy; the file backing is gone once the deferred cleanup runs
	return imaging.Clone(result), nil
}

func (r *RealESRGAN) Close() {}
