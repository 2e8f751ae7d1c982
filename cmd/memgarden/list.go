package main

import (
	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newListCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				stories, err := client.ListStories(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(stories)
				}
				return writeStoryList(stories)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of stories")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of stories to skip")
	return cmd
}
