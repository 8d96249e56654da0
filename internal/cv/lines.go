package cv

import (
	"image"
	"math"
	"sort"
)

// DefaultDPI is used when the device density cannot be read
const DefaultDPI = 440

// LineConfig holds the fixed sampling parameters for line detection
type LineConfig struct {
	Color              ColorThresholds
	SampleStep         int     // Pixel stride in both axes
	BucketWidth        int     // Horizontal bin width in pixels
	MinPixelsPerBucket int     // Matches required for a bucket to count as a line
	MinSeparationMM    float64 // Minimum gap between adjacent lines, physical units
	DPI                int     // Device density; <= 0 means DefaultDPI
}

// DefaultLineConfig returns the tuned detection parameters
func DefaultLineConfig() LineConfig {
	return LineConfig{
		Color:              DefaultColorThresholds(),
		SampleStep:         6,
		BucketWidth:        25,
		MinPixelsPerBucket: 10,
		MinSeparationMM:    2,
		DPI:                DefaultDPI,
	}
}

// LineCenter is a retained bucket: representative x and its match count
type LineCenter struct {
	X     int `json:"x"`
	Count int `json:"count"`
}

// Detection is the outcome of analysing one frame.
// Lines is only meaningful when Found is true.
type Detection struct {
	Found   bool
	Lines   [3]LineCenter
	Centers []LineCenter // All retained centers, ascending by X
}

// LineDetector finds three separated vertical bands of the target color
type LineDetector struct {
	config   LineConfig
	minSepPx int
}

// NewLineDetector creates a detector; the separation is converted to pixels once
func NewLineDetector(config LineConfig) *LineDetector {
	if config.SampleStep <= 0 {
		config.SampleStep = 1
	}
	if config.BucketWidth <= 0 {
		config.BucketWidth = 1
	}
	return &LineDetector{
		config:   config,
		minSepPx: MmToPx(config.MinSeparationMM, config.DPI),
	}
}

// MinSeparationPx returns the minimum line separation in device pixels
func (d *LineDetector) MinSeparationPx() int {
	return d.minSepPx
}

// Config returns the detector configuration
func (d *LineDetector) Config() LineConfig {
	return d.config
}

// MmToPx converts a physical distance to device pixels
func MmToPx(mm float64, dpi int) int {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return int(math.Round(mm / 25.4 * float64(dpi)))
}

// Detect scans the frame and applies the separation search
func (d *LineDetector) Detect(frame *image.RGBA) Detection {
	centers := d.Centers(frame)
	trio, ok := FindTrio(centers, d.minSepPx)
	return Detection{
		Found:   ok,
		Lines:   trio,
		Centers: centers,
	}
}

// Centers runs the sparse scan and returns retained bucket centers sorted by X
func (d *LineDetector) Centers(frame *image.RGBA) []LineCenter {
	if frame == nil {
		return nil
	}
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil
	}

	step := d.config.SampleStep
	bw := d.config.BucketWidth
	buckets := make([]int, (width+bw-1)/bw)

	for y := 0; y < height; y += step {
		row := frame.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x += step {
			idx := row + x*4
			r := frame.Pix[idx]
			g := frame.Pix[idx+1]
			b := frame.Pix[idx+2]
			if d.config.Color.IsTargetColor(r, g, b) {
				buckets[x/bw]++
			}
		}
	}

	centers := make([]LineCenter, 0, 8)
	for k, count := range buckets {
		if count >= d.config.MinPixelsPerBucket && count > 0 {
			centers = append(centers, LineCenter{
				X:     k*bw + bw/2,
				Count: count,
			})
		}
	}

	sort.Slice(centers, func(i, j int) bool {
		return centers[i].X < centers[j].X
	})
	return centers
}

// FindTrio returns the first consecutive triple whose adjacent gaps are both
// at least minSepPx. The leftmost qualifying triple wins.
func FindTrio(centers []LineCenter, minSepPx int) ([3]LineCenter, bool) {
	var trio [3]LineCenter
	if len(centers) < 3 {
		return trio, false
	}
	for i := 0; i+2 < len(centers); i++ {
		a, b, c := centers[i], centers[i+1], centers[i+2]
		if b.X-a.X >= minSepPx && c.X-b.X >= minSepPx {
			trio = [3]LineCenter{a, b, c}
			return trio, true
		}
	}
	return trio, false
}
