package engine

import (
	"context"
	"fmt"
	"image"
	"os"

	"upscaled/internal/core/domain"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNX runs a Real-ESRGAN x4 checkpoint in-process through onnxruntime.
// The session is created once at startup and shared across requests;
// onnxruntime serializes access internally. Per-request tensors are
// destroyed before Upscale returns so peak memory stays bounded across
// many sequential requests.
type ONNX struct {
	session *ort.DynamicAdvancedSession
}

// NewONNX loads the model and prepares a dynamic-shape session. libraryPath
// optionally points at the onnxruntime shared library when it is not on the
// default search path.
func NewONNX(modelPath, libraryPath string) (*ONNX, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model checkpoint not available: %w", err)
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initializing onnxruntime: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	log.Debug().Str("model", modelPath).Msg("onnx session created")

	return &ONNX{session: session}, nil
}

func (o *ONNX) Name() string {
	return "onnx"
}

func (o *ONNX) Upscale(_ context.Context, img image.Image, scale int) (image.Image, error) {
	rgb := imaging.Clone(img)
	bounds := rgb.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(height), int64(width)), imageToNCHW(rgb))
	if err != nil {
		return nil, domain.NewEngineError(o.Name(), fmt.Errorf("creating input tensor: %w", err))
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, domain.NewEngineError(o.Name(), fmt.Errorf("inference failed: %w", err))
	}

	output, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		outputs[0].Destroy()
		return nil, domain.NewEngineError(o.Name(), fmt.Errorf("unexpected output type %T", outputs[0]))
	}
	defer output.Destroy()

	shape := output.GetShape()
	if len(shape) != 4 || shape[1] != 3 {
		return nil, domain.NewEngineError(o.Name(), fmt.Errorf("unexpected output shape %v", shape))
	}

	outHeight, outWidth := int(shape[2]), int(shape[3])
	result := nchwToImage(output.GetData(), outWidth, outHeight)

	// the checkpoint magnifies by a fixed x4; correct to the requested scale
	if outWidth != width*scale || outHeight != height*scale {
		return imaging.Resize(result, width*scale, height*scale, imaging.Lanczos), nil
	}

	return result, nil
}

func (o *ONNX) Close() {
	if err := o.session.Destroy(); err != nil {
		log.Warn().Err(err).Msg("could not destroy onnx session")
	}
	if err := ort.DestroyEnvironment(); err != nil {
		log.Warn().Err(err).Msg("could not destroy onnxruntime environment")
	}
}

// imageToNCHW lays the image out as planar RGB float32 in [0,1], the input
// format Real-ESRGAN expects. Alpha is dropped.
func imageToNCHW(img *image.NRGBA) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := img.PixOffset(x, y)
			idx := y*width + x
			data[idx] = float32(img.Pix[offset]) / 255.0
			data[plane+idx] = float32(img.Pix[offset+1]) / 255.0
			data[2*plane+idx] = float32(img.Pix[offset+2]) / 255.0
		}
	}

	return data
}

// nchwToImage converts planar RGB float32 back to an opaque NRGBA image,
// clamping each channel to [0,1].
func nchwToImage(data []float32, width, height int) *image.NRGBA {
	plane := width * height
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			offset := img.PixOffset(x, y)
			img.Pix[offset] = clampByte(data[idx])
			img.Pix[offset+1] = clampByte(data[plane+idx])
			img.Pix[offset+2] = clampByte(data[2*plane+idx])
			img.Pix[offset+3] = 0xff
		}
	}

	return img
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255.0 + 0.5)
	}
}
