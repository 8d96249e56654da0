package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"jordanella.com/linewatch/internal/events"
)

var (
	// DefaultWindowSize fits a portrait phone overlay next to the controls
	DefaultWindowSize = fyne.NewSize(520, 900)

	// Colors
	ColorPrimary    = color.NRGBA{R: 63, G: 81, B: 181, A: 255}   // Material Indigo
	ColorSuccess    = color.NRGBA{R: 76, G: 175, B: 80, A: 255}   // Material Green
	ColorWarning    = color.NRGBA{R: 255, G: 152, B: 0, A: 255}   // Material Orange
	ColorError      = color.NRGBA{R: 244, G: 67, B: 54, A: 255}   // Material Red
	ColorIdle       = color.NRGBA{R: 158, G: 158, B: 158, A: 255} // Material Grey
	ColorBackground = color.NRGBA{R: 18, G: 18, B: 18, A: 255}    // Dark background
)

// Theme is the dark theme of the control panel
type Theme struct{}

func (t *Theme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameButton:
		return ColorPrimary
	case theme.ColorNameBackground:
		return ColorBackground
	case theme.ColorNameSuccess:
		return ColorSuccess
	case theme.ColorNameWarning:
		return ColorWarning
	case theme.ColorNameError:
		return ColorError
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *Theme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *Theme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *Theme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 14
	case theme.SizeNameHeadingText:
		return 20
	case theme.SizeNamePadding:
		return 6
	default:
		return theme.DefaultTheme().Size(name)
	}
}

// statusColor maps a loop status to the banner color
func statusColor(status string) color.Color {
	switch status {
	case events.StatusRunning:
		return ColorSuccess
	case events.StatusPaused:
		return ColorWarning
	case statusError:
		return ColorError
	default:
		return ColorIdle
	}
}
