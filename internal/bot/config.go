package bot

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"jordanella.com/linewatch/internal/cv"
	"jordanella.com/linewatch/internal/gesture"
	"jordanella.com/linewatch/internal/overlay"
)

// RegionSpec is a tap region expressed as fractions of the device size
type RegionSpec struct {
	Top    float64 `yaml:"top" json:"top"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
	Left   float64 `yaml:"left" json:"left"`
	Right  float64 `yaml:"right" json:"right"`
}

// Resolve converts the fractions to device pixels
func (r RegionSpec) Resolve(width, height int) cv.Region {
	return cv.NewRegion(
		int(math.Round(r.Top*float64(height))),
		int(math.Round(r.Bottom*float64(height))),
		int(math.Round(r.Left*float64(width))),
		int(math.Round(r.Right*float64(width))),
	)
}

// RegionSet holds the three tap regions, tapped bottom, mid, top in that order
type RegionSet struct {
	Bottom RegionSpec `yaml:"bottom" json:"bottom"`
	Mid    RegionSpec `yaml:"mid" json:"mid"`
	Top    RegionSpec `yaml:"top" json:"top"`
}

// DefaultRegions returns the three horizontal bands in the middle half of the screen
func DefaultRegions() RegionSet {
	return RegionSet{
		Bottom: RegionSpec{Top: 0.75, Bottom: 0.95, Left: 0.25, Right: 0.75},
		Mid:    RegionSpec{Top: 0.45, Bottom: 0.65, Left: 0.25, Right: 0.75},
		Top:    RegionSpec{Top: 0.10, Bottom: 0.30, Left: 0.25, Right: 0.75},
	}
}

// Layout is the region geometry resolved against a concrete device
type Layout struct {
	Width  int
	Height int
	Bottom cv.Region
	Mid    cv.Region
	Top    cv.Region
}

// Regions returns the tap regions in tap order
func (l Layout) Regions() []cv.Region {
	return []cv.Region{l.Bottom, l.Mid, l.Top}
}

// Config holds the fixed automation settings, set once at startup
type Config struct {
	Regions RegionSet

	// Gestures
	TapDurationMs         int
	TapDelayMinMs         int
	TapDelayMaxMs         int
	SwipeAnchorY          float64 // Fraction of height where swipes start
	SwipeDistanceFraction float64 // Swipe length as a fraction of height
	SwipeDurationMs       int
	SettleDelayMs         int

	// Capture
	CaptureMaxAttempts            int
	CaptureBackoffMs              int
	MaxConsecutiveCaptureFailures int // 0 disables the circuit breaker

	// Detection
	GreenMin           int
	GreenMax           int
	ColorDelta         int
	SampleStep         int
	BucketWidth        int
	MinPixelsPerBucket int
	MinSeparationMM    float64
	DPI                int // 0 means read from the device

	// Overlay
	OverlayDir       string
	AutoSaveOverlay  bool
	MarkerInterval   int
	MarkerMargin     int
	MarkerMinRadius  int
	MarkerRadiusFrac float64
	MarkerAlpha      int

	// Session
	StartDelaySeconds int
	KeepScreenOn      bool
}

// NewDefaultConfig returns the tuned defaults
func NewDefaultConfig() *Config {
	return &Config{
		Regions: DefaultRegions(),

		TapDurationMs:         120,
		TapDelayMinMs:         200,
		TapDelayMaxMs:         300,
		SwipeAnchorY:          0.75,
		SwipeDistanceFraction: 0.25,
		SwipeDurationMs:       250,
		SettleDelayMs:         400,

		CaptureMaxAttempts: 2,
		CaptureBackoffMs:   120,

		GreenMin:           70,
		GreenMax:           255,
		ColorDelta:         40,
		SampleStep:         6,
		BucketWidth:        25,
		MinPixelsPerBucket: 10,
		MinSeparationMM:    2,

		OverlayDir:       "overlays",
		AutoSaveOverlay:  true,
		MarkerInterval:   60,
		MarkerMargin:     60,
		MarkerMinRadius:  35,
		MarkerRadiusFrac: 0.04,
		MarkerAlpha:      200,

		StartDelaySeconds: 5,
		KeepScreenOn:      true,
	}
}

// Validate checks the settings that would make the loop misbehave
func (c *Config) Validate() error {
	switch {
	case c.TapDurationMs < 0:
		return fmt.Errorf("tap duration must not be negative")
	case c.TapDelayMinMs < 0 || c.TapDelayMaxMs < c.TapDelayMinMs:
		return fmt.Errorf("tap delay range [%d,%d] is invalid", c.TapDelayMinMs, c.TapDelayMaxMs)
	case c.SwipeAnchorY <= 0 || c.SwipeAnchorY > 1:
		return fmt.Errorf("swipe anchor %.2f must be in (0,1]", c.SwipeAnchorY)
	case c.SwipeDistanceFraction <= 0 || c.SwipeDistanceFraction > c.SwipeAnchorY:
		return fmt.Errorf("swipe distance %.2f must be in (0,%.2f]", c.SwipeDistanceFraction, c.SwipeAnchorY)
	case c.CaptureMaxAttempts < 1:
		return fmt.Errorf("capture attempts must be at least 1")
	case c.MaxConsecutiveCaptureFailures < 0:
		return fmt.Errorf("max consecutive capture failures must not be negative")
	case c.GreenMin < 0 || c.GreenMax > 255 || c.GreenMin > c.GreenMax:
		return fmt.Errorf("green range [%d,%d] is invalid", c.GreenMin, c.GreenMax)
	case c.SampleStep < 1:
		return fmt.Errorf("sample step must be at least 1")
	case c.BucketWidth < 1:
		return fmt.Errorf("bucket width must be at least 1")
	case c.MinPixelsPerBucket < 1:
		return fmt.Errorf("min pixels per bucket must be at least 1")
	case c.MinSeparationMM < 0:
		return fmt.Errorf("min separation must not be negative")
	case c.MarkerAlpha < 0 || c.MarkerAlpha > 255:
		return fmt.Errorf("marker alpha %d must be in [0,255]", c.MarkerAlpha)
	case c.StartDelaySeconds < 0:
		return fmt.Errorf("start delay must not be negative")
	}
	return nil
}

// Resolve converts the fractional regions to pixels and checks them against the device
func (c *Config) Resolve(width, height int) (Layout, error) {
	if width <= 0 || height <= 0 {
		return Layout{}, fmt.Errorf("invalid device size %dx%d", width, height)
	}
	layout := Layout{
		Width:  width,
		Height: height,
		Bottom: c.Regions.Bottom.Resolve(width, height),
		Mid:    c.Regions.Mid.Resolve(width, height),
		Top:    c.Regions.Top.Resolve(width, height),
	}
	names := []string{"bottom", "mid", "top"}
	for i, r := range layout.Regions() {
		if err := r.Validate(width, height); err != nil {
			return Layout{}, fmt.Errorf("%s region: %w", names[i], err)
		}
	}
	return layout, nil
}

// SwipeDistance returns the swipe length in pixels for a device height
func (c *Config) SwipeDistance(height int) int {
	return int(float64(height) * c.SwipeDistanceFraction)
}

// SettleDelay returns the wait after a swipe
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// CaptureBackoff returns the wait between capture attempts
func (c *Config) CaptureBackoff() time.Duration {
	return time.Duration(c.CaptureBackoffMs) * time.Millisecond
}

// StartDelay returns the wait between confirmation and start
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.StartDelaySeconds) * time.Second
}

// LineConfig returns the detector settings; dpi overrides DPI when DPI is 0
func (c *Config) LineConfig(dpi int) cv.LineConfig {
	if c.DPI > 0 {
		dpi = c.DPI
	}
	return cv.LineConfig{
		Color: cv.ColorThresholds{
			GreenMin: c.GreenMin,
			GreenMax: c.GreenMax,
			Delta:    c.ColorDelta,
		},
		SampleStep:         c.SampleStep,
		BucketWidth:        c.BucketWidth,
		MinPixelsPerBucket: c.MinPixelsPerBucket,
		MinSeparationMM:    c.MinSeparationMM,
		DPI:                dpi,
	}
}

// GestureConfig returns the scheduler timing
func (c *Config) GestureConfig() gesture.Config {
	return gesture.Config{
		TapDurationMs: c.TapDurationMs,
		TapDelayMinMs: c.TapDelayMinMs,
		TapDelayMaxMs: c.TapDelayMaxMs,
		SwipeAnchorY:  c.SwipeAnchorY,
	}
}

// OverlayStyle returns the marker style
func (c *Config) OverlayStyle() overlay.Style {
	return overlay.Style{
		Color:          color.NRGBA{R: 0, G: 255, B: 0, A: uint8(c.MarkerAlpha)},
		Interval:       c.MarkerInterval,
		Margin:         c.MarkerMargin,
		MinRadius:      c.MarkerMinRadius,
		RadiusFraction: c.MarkerRadiusFrac,
	}
}
