package cv

import (
	"errors"
	"image"
)

var (
	// ErrCaptureUnavailable is a transient failure to obtain a frame
	ErrCaptureUnavailable = errors.New("screen capture unavailable")
	// ErrPermissionDenied means the device refused screen capture; fatal at startup
	ErrPermissionDenied = errors.New("screen capture permission denied")
)

// Capturer interface for different capture methods
type Capturer interface {
	CaptureFrame() (*image.RGBA, error)
	GetDimensions() (width, height int)
}

// PermissionChecker is implemented by capturers that need a one-time grant
type PermissionChecker interface {
	CheckPermission() error
}

// CaptureConfig holds the bounded retry policy for frame capture
type CaptureConfig struct {
	MaxAttempts int
	BackoffMs   int
}

// DefaultCaptureConfig returns the recommended retry policy
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		MaxAttempts: 2,
		BackoffMs:   120,
	}
}

// toRGBA converts any decoded image to *image.RGBA anchored at (0,0)
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return rgba
}
