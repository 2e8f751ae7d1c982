package main

import (
	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newCreateCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var sc api.StoryContext

	cmd := &cobra.Command{
		Use:   "create <photo> [<photo>...]",
		Short: "Create a story from photos and context",
		Args:  requireAtLeastArgs(1, "at least one photo is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, closeUploads, err := openUploads(args)
			if err != nil {
				return err
			}
			defer closeUploads()

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.CreateStory(cmd.Context(), sc, uploads)
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

	cmd.Flags().StringVar(&sc.Date, "date", "", "date of the memory (required)")
	cmd.Flags().StringVar(&sc.Place, "place", "", "place of the memory (required)")
	cmd.Flags().StringVar(&sc.Weather, "weather", "", "weather that day (required)")
	cmd.Flags().StringVar(&sc.Notes, "notes", "", "free-form notes")
	return cmd
}
