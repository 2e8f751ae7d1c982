package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
	"github.com/dae9999nam/Memory-Garden/internal/models"
)

func newDeleteCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a story or one of its parts",
		Args:  requireExactlyArgs(1, "story id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := models.ParseDeleteTarget(target)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DeleteStory(cmd.Context(), args[0], string(parsed))
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(resp)
				}
				return writePlain("deleted %s of %s\n", resp.Target, resp.ID)
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", string(models.DeleteTargetAll),
		fmt.Sprintf("what to delete: %s, %s, %s or %s",
			models.DeleteTargetPhotos, models.DeleteTargetPrompt, models.DeleteTargetNarrative, models.DeleteTargetAll))
	return cmd
}
