package stage

import (
	"context"
	"log/slog"
)

// Stage names in the order a full load runs them.
const (
	Books     = "books"
	Links     = "links"
	BoxOffice = "box-office"
	Actors    = "actors"
	TMDB      = "tmdb"
)

// Order lists every stage in dependency order.
var Order = []string{Books, Links, BoxOffice, Actors, TMDB}

// Handler describes the contract the runner needs from each load stage.
// Prepare checks configuration and inputs; a failure there aborts only this
// stage. Execute performs the load and reports its counts.
type Handler interface {
	Prepare(context.Context) error
	Execute(context.Context) (Summary, error)
}

// LoggerAware handlers receive the stage-scoped logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// HealthChecker handlers can report readiness without doing any work.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}
