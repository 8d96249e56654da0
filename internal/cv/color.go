package cv

// ColorThresholds describes the target (green) shade.
// A pixel matches when its green channel is within [GreenMin, GreenMax]
// and exceeds both red and blue by strictly more than Delta.
type ColorThresholds struct {
	GreenMin int
	GreenMax int
	Delta    int
}

// DefaultColorThresholds returns the hand-tuned green thresholds
func DefaultColorThresholds() ColorThresholds {
	return ColorThresholds{
		GreenMin: 70,
		GreenMax: 255,
		Delta:    40,
	}
}

// IsTargetColor reports whether an 8-bit RGB triple is the target color
func (t ColorThresholds) IsTargetColor(r, g, b uint8) bool {
	gi := int(g)
	if gi < t.GreenMin || gi > t.GreenMax {
		return false
	}
	return gi-int(r) > t.Delta && gi-int(b) > t.Delta
}
