package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/config"
)

func newGCCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var (
		apply     bool
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Find and remove photo blobs no story references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.SweepOrphans(cmd.Context(), olderThan, apply)
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(resp)
				}
				if resp.DryRun {
					return writePlain("scanned %d blobs; %d orphaned (%d bytes); run with --apply to delete\n",
						resp.Scanned, resp.Candidates, resp.ReclaimedBytes)
				}
				return writePlain("scanned %d blobs; deleted %d, failed %d, reclaimed %d bytes\n",
					resp.Scanned, resp.Deleted, resp.Failed, resp.ReclaimedBytes)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned blobs instead of reporting them")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only consider blobs older than this (default: gc.grace_period)")
	return cmd
}
