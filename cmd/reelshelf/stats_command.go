package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelshelf/internal/warehouse"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts for every warehouse table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *warehouse.Store) error {
				rows := make([][]string, 0, len(warehouse.Tables))
				for _, table := range warehouse.Tables {
					n, err := store.Count(cmd.Context(), table)
					if err != nil {
						return err
					}
					rows = append(rows, []string{table, strconv.FormatInt(n, 10)})
				}
				out := cmd.OutOrStdout()
				headers := []string{"Table", "Rows"}
				if shouldColorize(out) {
					fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}))
					return nil
				}
				fmt.Fprintln(out, renderPlain(headers, rows))
				return nil
			})
		},
	}
}
