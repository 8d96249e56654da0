package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"jordanella.com/linewatch/internal/upload"
)

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var (
		name string
		url  string
	)

	cmd := &cobra.Command{
		Use:   "upload <dir>",
		Short: "Zip a folder and send it to the collection server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.settings.Upload
			if url != "" {
				cfg.URL = url
			}
			if name == "" {
				name = filepath.Base(filepath.Clean(args[0]))
			}

			uploader := upload.New(cfg, opts.logger.Named("upload"))
			if err := uploader.UploadFolder(cmd.Context(), args[0], name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s.zip to %s\n", name, cfg.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "archive name without .zip (default is the folder name)")
	cmd.Flags().StringVar(&url, "url", "", "upload endpoint (default from Settings.ini)")
	return cmd
}
