// Package overlay renders detected line markers onto a captured frame and
// stores the result as PNG.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
	"jordanella.com/linewatch/internal/cv"
)

// circleSegments is the polygon resolution used for marker circles
const circleSegments = 48

// Style controls marker appearance
type Style struct {
	Color          color.NRGBA
	Interval       int     // Vertical spacing between markers
	Margin         int     // First marker offset from the top; last allowed offset from the bottom
	MinRadius      int     // Radius floor in pixels
	RadiusFraction float64 // Radius as a fraction of min(width, height)
}

// DefaultStyle returns translucent green markers every 60px
func DefaultStyle() Style {
	return Style{
		Color:          color.NRGBA{R: 0, G: 255, B: 0, A: 200},
		Interval:       60,
		Margin:         60,
		MinRadius:      35,
		RadiusFraction: 0.04,
	}
}

// Radius returns the marker radius for a frame of the given size
func (s Style) Radius(width, height int) int {
	r := int(math.Round(float64(min(width, height)) * s.RadiusFraction))
	return max(s.MinRadius, r)
}

// MarkerRows returns the y positions of the markers for a frame height:
// Margin, Margin+Interval, ... up to and including height-Margin.
func (s Style) MarkerRows(height int) []int {
	if s.Interval <= 0 {
		return nil
	}
	var rows []int
	for y := s.Margin; y <= height-s.Margin; y += s.Interval {
		rows = append(rows, y)
	}
	return rows
}

// Compose copies frame and paints a column of filled circles over each line.
// The input frame is not modified.
func Compose(frame *image.RGBA, lines []cv.LineCenter, style Style) *image.RGBA {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), frame, bounds.Min, draw.Src)

	rows := style.MarkerRows(height)
	if len(lines) == 0 || len(rows) == 0 {
		return out
	}

	radius := float32(style.Radius(width, height))
	z := vector.NewRasterizer(width, height)
	z.DrawOp = draw.Over
	for _, line := range lines {
		for _, y := range rows {
			addCircle(z, float32(line.X), float32(y), radius)
		}
	}
	z.Draw(out, out.Bounds(), image.NewUniform(style.Color), image.Point{})

	return out
}

// addCircle appends a closed polygonal circle path to the rasterizer
func addCircle(z *vector.Rasterizer, cx, cy, r float32) {
	z.MoveTo(cx+r, cy)
	for i := 1; i < circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		z.LineTo(cx+r*float32(math.Cos(theta)), cy+r*float32(math.Sin(theta)))
	}
	z.ClosePath()
}
