package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelshelf/internal/stage"
	"reelshelf/internal/warehouse"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether each stage's inputs are ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withStore(cmd.Context(), func(store *warehouse.Store) error {
				fmt.Fprintln(out, renderStatusLine("warehouse", statusOK, store.Dialect().Name, colorize))
				notReady := 0
				for _, name := range stage.Order {
					handler := newStageHandler(name, cfg, store)
					checker, ok := handler.(stage.HealthChecker)
					if !ok {
						fmt.Fprintln(out, renderStatusLine(name, statusInfo, "no readiness check", colorize))
						continue
					}
					health := checker.HealthCheck(cmd.Context())
					if health.Ready {
						fmt.Fprintln(out, renderStatusLine(name, statusOK, "", colorize))
						continue
					}
					notReady++
					fmt.Fprintln(out, renderStatusLine(name, statusWarn, health.Detail, colorize))
				}
				if notReady > 0 {
					fmt.Fprintf(out, "%d stage(s) not ready\n", notReady)
				}
				return nil
			})
		},
	}
}
