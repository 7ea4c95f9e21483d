package main

import (
	"reelshelf/internal/adaptation"
	"reelshelf/internal/bulkload"
	"reelshelf/internal/config"
	"reelshelf/internal/enrich"
	"reelshelf/internal/stage"
	"reelshelf/internal/stageexec"
	"reelshelf/internal/warehouse"
)

// stageSelection is the set of stages a load invocation asked for.
type stageSelection struct {
	books     bool
	links     bool
	boxOffice bool
	actors    bool
	tmdb      bool
	all       bool
}

// names returns the selected stages in dependency order.
func (s stageSelection) names() []string {
	picked := map[string]bool{
		stage.Books:     s.books,
		stage.Links:     s.links,
		stage.BoxOffice: s.boxOffice,
		stage.Actors:    s.actors,
		stage.TMDB:      s.tmdb,
	}
	var out []string
	for _, name := range stage.Order {
		if s.all || picked[name] {
			out = append(out, name)
		}
	}
	return out
}

func newStageHandler(name string, cfg *config.Config, store *warehouse.Store) stage.Handler {
	switch name {
	case stage.Books:
		return adaptation.NewBooksStage(cfg, store)
	case stage.Links:
		return adaptation.NewLinksStage(cfg, store)
	case stage.BoxOffice:
		return enrich.NewBoxOfficeStage(cfg, store)
	case stage.Actors:
		return bulkload.NewActorsStage(cfg, store)
	case stage.TMDB:
		return enrich.NewTMDBStage(cfg, store)
	default:
		return nil
	}
}

func buildEntries(names []string, cfg *config.Config, store *warehouse.Store) []stageexec.Entry {
	entries := make([]stageexec.Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, stageexec.Entry{Name: name, Handler: newStageHandler(name, cfg, store)})
	}
	return entries
}
