package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"jordanella.com/linewatch/internal/database"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the detections of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.OpenAndMigrate(opts.settings.History.Path, opts.logger.Named("db"))
			if err != nil {
				return err
			}
			defer db.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if runID != "" {
				detections, err := db.ListDetections(runID, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ITER\tDETECTED\tLINES\tMIN SEP\tOVERLAY")
				for _, d := range detections {
					fmt.Fprintf(tw, "%d\t%s\t%d,%d,%d\t%dpx\t%s\n",
						d.Iteration, d.DetectedAt.Local().Format(time.DateTime),
						d.LineX[0], d.LineX[1], d.LineX[2], d.MinSeparationPx, d.OverlayPath)
				}
				return nil
			}

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tDEVICE\tSTARTED\tDURATION\tITER\tOUTCOME")
			for _, r := range runs {
				duration := "-"
				if d := r.Duration(); d > 0 {
					duration = d.Round(time.Second).String()
				}
				kind := ""
				if r.IsRestart {
					kind = " (restart)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s%s\n",
					r.ID, r.Device, r.StartedAt.Local().Format(time.DateTime),
					duration, r.Iterations, r.Outcome, kind)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the detections of this run")
	return cmd
}
