package cv

import (
	"fmt"
	"image"
)

// Region is an axis-aligned rectangle in device pixel coordinates.
// Bounds are inclusive for random tap selection.
type Region struct {
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

type Point struct {
	X, Y int
}

// NewRegion creates a new region
func NewRegion(top, bottom, left, right int) Region {
	return Region{Top: top, Bottom: bottom, Left: left, Right: right}
}

// Validate checks the region is well formed and lies inside a width x height device
func (r Region) Validate(width, height int) error {
	if r.Top >= r.Bottom {
		return fmt.Errorf("region top (%d) must be less than bottom (%d)", r.Top, r.Bottom)
	}
	if r.Left >= r.Right {
		return fmt.Errorf("region left (%d) must be less than right (%d)", r.Left, r.Right)
	}
	if r.Top < 0 || r.Left < 0 || r.Bottom > height || r.Right > width {
		return fmt.Errorf("region %v exceeds device bounds %dx%d", r, width, height)
	}
	return nil
}

// Contains checks if a point is within the region
func (r Region) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Width returns the width of the region
func (r Region) Width() int {
	return r.Right - r.Left
}

// Height returns the height of the region
func (r Region) Height() int {
	return r.Bottom - r.Top
}

func (r Region) String() string {
	return fmt.Sprintf("[x %d..%d, y %d..%d]", r.Left, r.Right, r.Top, r.Bottom)
}

// ToImageRectangle converts Region to an image.Rectangle
func (r Region) ToImageRectangle() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}
