package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newPhotoCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "photo <id> <photo-id>",
		Short: "Download one photo of a story",
		Args:  requireExactlyArgs(2, "story id and photo id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = os.Stdout
			var file *os.File
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				file = f
				out = f
			}

			err := withClient(cfg, func(client *api.Client) error {
				mimeType, err := client.DownloadPhoto(cmd.Context(), args[0], args[1], out)
				if err != nil {
					return err
				}
				if file != nil {
					fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", outPath, mimeType)
				}
				return nil
			})
			if file != nil {
				if closeErr := file.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					_ = os.Remove(outPath)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
