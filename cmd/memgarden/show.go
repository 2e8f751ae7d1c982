package main

import (
	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newShowCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var photosOnly bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a story",
		Args:  requireExactlyArgs(1, "story id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if photosOnly {
					photos, err := client.ListPhotos(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if *structured {
						return writeStructured(photos)
					}
					return writePhotoList(photos)
				}

				resp, err := client.GetStory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(resp)
				}
				return writeStoryDetail(resp)
			})
		},
	}

	cmd.Flags().BoolVar(&photosOnly, "photos", false, "list only the story's photos")
	return cmd
}
