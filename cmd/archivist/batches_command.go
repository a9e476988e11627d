package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"archivist/internal/config"
	"archivist/internal/store"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "Show contributor batch progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				batches, err := st.ListBatches(cmd.Context())
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No batches recorded")
					return nil
				}

				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					progress := fmt.Sprintf("%d/%d", batch.ProcessedFiles, batch.TotalFiles)
					completed := "in progress"
					if batch.ProcessingCompleted != nil {
						completed = humanize.Time(*batch.ProcessingCompleted)
					}
					rows = append(rows, []string{
						batch.ID,
						cfg.ContributorName(batch.Contributor),
						batch.EventName,
						decadeLabel(batch.Decade),
						progress,
						humanize.Bytes(uint64(batch.TotalBytes)),
						completed,
					})
				}
				table := renderTable(
					[]string{"Batch", "Contributor", "Event", "Decade", "Files", "Size", "Completed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func decadeLabel(decade int) string {
	if decade <= 0 {
		return ""
	}
	return strconv.Itoa(decade) + "s"
}
