package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"archivist/internal/config"
	"archivist/internal/deps"
	"archivist/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show archive processing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				health, err := st.Health(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintln(out, "Archivist")
				fmt.Fprintln(out, renderStatusLine("Remote root", statusInfo, cfg.Paths.RemoteRoot, colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))
				fmt.Fprintln(out, renderStatusLine("Total assets", statusInfo, strconv.Itoa(health.Total), colorize))
				fmt.Fprintln(out, renderStatusLine("Awaiting processing", healthKind(health.Uploaded, statusInfo), strconv.Itoa(health.Uploaded), colorize))
				fmt.Fprintln(out, renderStatusLine("In flight", healthKind(health.Processing, statusInfo), strconv.Itoa(health.Processing), colorize))
				fmt.Fprintln(out, renderStatusLine("Needs review", healthKind(health.Review, statusWarn), strconv.Itoa(health.Review), colorize))
				fmt.Fprintln(out, renderStatusLine("Duplicates", healthKind(health.Duplicate, statusWarn), strconv.Itoa(health.Duplicate), colorize))
				fmt.Fprintln(out, renderStatusLine("Errored", healthKind(health.Errored, statusError), strconv.Itoa(health.Errored), colorize))

				fmt.Fprintln(out, "External tools")
				for _, tool := range deps.CheckBinaries(deps.ForConfig(cfg)) {
					kind := statusOK
					message := tool.Command
					if !tool.Available {
						message = tool.Detail
						kind = statusError
						if tool.Optional {
							kind = statusWarn
						}
					}
					fmt.Fprintln(out, renderStatusLine(tool.Name, kind, message, colorize))
				}
				return nil
			})
		},
	}
}

func healthKind(count int, nonZero statusKind) statusKind {
	if count == 0 {
		return statusOK
	}
	return nonZero
}
