package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"archivist/internal/config"
	"archivist/internal/store"
)

func newDupesCommand(ctx *commandContext) *cobra.Command {
	var resolveID int64

	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "Show detected duplicate relationships",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()

				if resolveID > 0 {
					if err := st.ResolveDuplicate(cmd.Context(), resolveID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Marked duplicate record %d as reviewed\n", resolveID)
					return nil
				}

				records, err := st.UnresolvedDuplicates(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No unresolved duplicates")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					master, duplicate := describeAsset(cmd, st, record.MasterID), describeAsset(cmd, st, record.AssetID)
					rows = append(rows, []string{
						strconv.FormatInt(record.ID, 10),
						master,
						duplicate,
						string(record.Kind),
						formatScore(record),
					})
				}
				table := renderTable(
					[]string{"Record", "Master", "Duplicate", "Match", "Distance"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&resolveID, "resolve", 0, "Mark a duplicate record as reviewed")
	return cmd
}

func describeAsset(cmd *cobra.Command, st *store.Store, id string) string {
	asset, err := st.GetByID(cmd.Context(), id)
	if err != nil || asset == nil {
		return shortID(id)
	}
	return fmt.Sprintf("%s (%s)", asset.OriginalFilename, shortID(id))
}

func formatScore(record store.DuplicateRecord) string {
	if record.Kind == store.SimilarityHash {
		return "exact"
	}
	return strconv.FormatFloat(record.Score, 'f', 0, 64)
}
