package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archivist/internal/config"
	"archivist/internal/ingest"
	"archivist/internal/store"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Queue a local file for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				asset, err := ingest.IngestLocal(cmd.Context(), cfg, st, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as asset %s\n", asset.OriginalFilename, shortID(asset.ID))
				fmt.Fprintln(cmd.OutOrStdout(), "The daemon will pick it up on its next pass")
				return nil
			})
		},
	}
}
