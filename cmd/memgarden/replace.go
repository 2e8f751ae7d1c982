package main

import (
	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newReplaceCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var date, place, weather, notes string

	cmd := &cobra.Command{
		Use:   "replace <id> <photo> [<photo>...]",
		Short: "Replace a story's photos and regenerate its narrative",
		Args:  requireAtLeastArgs(2, "story id and at least one photo are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only flags the user set are sent; an explicit empty value clears the field.
			var overrides api.ContextOverrides
			flags := cmd.Flags()
			if flags.Changed("date") {
				overrides.Date = &date
			}
			if flags.Changed("place") {
				overrides.Place = &place
			}
			if flags.Changed("weather") {
				overrides.Weather = &weather
			}
			if flags.Changed("notes") {
				overrides.Notes = &notes
			}

			uploads, closeUploads, err := openUploads(args[1:])
			if err != nil {
				return err
			}
			defer closeUploads()

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ReplacePhotos(cmd.Context(), args[0], overrides, uploads)
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

	cmd.Flags().StringVar(&date, "date", "", "new date")
	cmd.Flags().StringVar(&place, "place", "", "new place")
	cmd.Flags().StringVar(&weather, "weather", "", "new weather")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}
