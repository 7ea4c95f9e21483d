package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reelshelf/internal/logging"
	"reelshelf/internal/metrics"
	"reelshelf/internal/runlock"
	"reelshelf/internal/services"
	"reelshelf/internal/stageexec"
	"reelshelf/internal/warehouse"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var sel stageSelection

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run one or more load stages against the warehouse",
		Long: `Run the selected load stages in dependency order:
books, links, box-office, actors, tmdb.

A stage that fails is reported and the remaining stages still run.
The exit status is non-zero only when a stage aborted on configuration.
Every write is idempotent, so rerunning a stage is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := sel.names()
			if len(names) == 0 {
				return errors.New("no stage selected; pass --all or at least one stage flag")
			}
			return runLoad(cmd, ctx, names)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&sel.books, "books", false, "Load the books file into dim_book")
	flags.BoolVar(&sel.links, "links", false, "Load the books/films snapshot and build facts")
	flags.BoolVar(&sel.links, "bfr", false, "Alias for --links")
	flags.BoolVar(&sel.boxOffice, "box-office", false, "Apply box office grosses")
	flags.BoolVar(&sel.actors, "actors", false, "Bulk load the actor reference file")
	flags.BoolVar(&sel.actors, "imdb", false, "Alias for --actors")
	flags.BoolVar(&sel.tmdb, "tmdb", false, "Enrich actors and films from TMDb")
	flags.BoolVar(&sel.all, "all", false, "Run every stage")
	_ = flags.MarkHidden("bfr")
	_ = flags.MarkHidden("imdb")

	return cmd
}

func runLoad(cmd *cobra.Command, ctx *commandContext, names []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	runCtx := services.WithRunID(cmd.Context(), uuid.NewString())
	logger = logging.WithContext(runCtx, logging.NewComponentLogger(logger, "load"))

	store, err := warehouse.Open(runCtx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.NewRecorder()
	results := stageexec.Run(runCtx, stageexec.Options{Logger: logger, Observer: recorder}, buildEntries(names, cfg, store))

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(results, shouldColorize(cmd.OutOrStdout())))

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}

	if err := runCtx.Err(); err != nil {
		return err
	}
	if stageexec.AnyAborted(results) {
		return fmt.Errorf("%d stage(s) aborted on configuration errors", abortedStages(results))
	}
	return nil
}

func abortedStages(results []stageexec.Result) int {
	n := 0
	for _, r := range results {
		if r.Aborted {
			n++
		}
	}
	return n
}
