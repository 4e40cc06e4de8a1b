package domain

// MaxEdge is the longest edge an image may have when it enters an engine.
// Larger inputs are downscaled proportionally before upscaling to bound
// latency and memory.
const MaxEdge = 2048

// ValidScales is the set of accepted magnification factors.
var ValidScales = []int{2, 4, 8}

// ScaleValid reports whether the given factor is one of the accepted scales.
func ScaleValid(scale int) bool {
	for _, s := range ValidScales {
		if s == scale {
			return true
		}
	}

	return false
}

const DefaultModel = "realesrgan-x4plus"

var modelNames = map[int]string{
	2: "realesr-animevideov3",
	4: "realesrgan-x4plus",
	8: "realesrgan-x4plus",
}

// ModelForScale returns the external binary's model name for a scale factor.
// Unrecognized scales map to the general x4 model.
func ModelForScale(scale int) string {
	name, ok := modelNames[scale]
	if !ok {
		return DefaultModel
	}

	return name
}
