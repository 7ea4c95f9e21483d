package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelshelf/internal/services"
	"reelshelf/internal/stage"
)

func counterValue(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestObserveStageCountsRows(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage(stage.Books, stage.Summary{Processed: 10, Inserted: 7, Updated: 2, Skipped: 1}, 2*time.Second, nil)
	r.ObserveStage(stage.Books, stage.Summary{Processed: 5, Updated: 5}, time.Second, nil)

	if got := counterValue(t, r, "reelshelf_stage_rows_total", map[string]string{"stage": "books", "outcome": "processed"}); got != 15 {
		t.Fatalf("expected 15 processed, got %v", got)
	}
	if got := counterValue(t, r, "reelshelf_stage_rows_total", map[string]string{"stage": "books", "outcome": "updated"}); got != 7 {
		t.Fatalf("expected 7 updated, got %v", got)
	}
	if got := counterValue(t, r, "reelshelf_stage_duration_seconds", map[string]string{"stage": "books"}); got != 1 {
		t.Fatalf("expected last duration 1s, got %v", got)
	}
}

func TestObserveStageRecordsFailureKind(t *testing.T) {
	r := NewRecorder()
	err := services.Wrap(services.ErrConfiguration, stage.TMDB, "prepare", "missing key", nil)
	r.ObserveStage(stage.TMDB, stage.Summary{}, 0, err)
	r.ObserveStage(stage.TMDB, stage.Summary{}, 0, errors.New("boom"))

	if got := counterValue(t, r, "reelshelf_stage_failures_total", map[string]string{"stage": "tmdb", "kind": "configuration"}); got != 1 {
		t.Fatalf("expected 1 configuration failure, got %v", got)
	}
	if got := counterValue(t, r, "reelshelf_stage_failures_total", map[string]string{"stage": "tmdb", "kind": "unknown"}); got != 1 {
		t.Fatalf("expected 1 unknown failure, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage(stage.Actors, stage.Summary{Processed: 3, Dropped: 1}, time.Second, nil)
	path := filepath.Join(t.TempDir(), "reelshelf.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `reelshelf_stage_rows_total{outcome="dropped",stage="actors"} 1`) {
		t.Fatalf("textfile missing dropped counter:\n%s", data)
	}
}
