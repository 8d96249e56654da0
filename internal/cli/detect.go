package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/cv"
	"jordanella.com/linewatch/internal/overlay"
)

type detectResult struct {
	File            string          `json:"file"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Found           bool            `json:"found"`
	Lines           []cv.LineCenter `json:"lines,omitempty"`
	Centers         []cv.LineCenter `json:"centers"`
	MinSeparationPx int             `json:"min_separation_px"`
	Overlay         string          `json:"overlay,omitempty"`
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	var (
		outPath string
		dpi     int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "detect <screenshot.png>",
		Short: "Run line detection on a saved screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.settings.Automation
			frame, err := overlay.LoadPNG(args[0])
			if err != nil {
				return fmt.Errorf("failed to load screenshot: %w", err)
			}

			detector := cv.NewLineDetector(cfg.LineConfig(dpi))
			detection := detector.Detect(frame)
			bounds := frame.Bounds()

			result := detectResult{
				File:            args[0],
				Width:           bounds.Dx(),
				Height:          bounds.Dy(),
				Found:           detection.Found,
				Centers:         detection.Centers,
				MinSeparationPx: detector.MinSeparationPx(),
			}
			if detection.Found {
				result.Lines = detection.Lines[:]
				if outPath != "" {
					composed := overlay.Compose(frame, result.Lines, cfg.OverlayStyle())
					if err := overlay.SavePNG(composed, outPath); err != nil {
						return err
					}
					result.Overlay = outPath
				}
			}
			opts.logger.Debug("Detection finished",
				zap.String("file", result.File),
				zap.Bool("found", result.Found),
				zap.Int("centers", len(result.Centers)))

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(w, "%s: %dx%d, %d candidate lines, min separation %dpx\n",
				result.File, result.Width, result.Height, len(result.Centers), result.MinSeparationPx)
			if !result.Found {
				fmt.Fprintln(w, "No event.")
				return nil
			}
			fmt.Fprintf(w, "3 green lines at x=%d, %d, %d\n",
				result.Lines[0].X, result.Lines[1].X, result.Lines[2].X)
			if result.Overlay != "" {
				fmt.Fprintf(w, "Overlay written to %s\n", result.Overlay)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the marked overlay to this PNG when lines are found")
	cmd.Flags().IntVar(&dpi, "dpi", cv.DefaultDPI, "screen density used for the separation threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
