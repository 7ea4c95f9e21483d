package stage

import (
	"fmt"
	"strings"
)

// Summary holds the row counts one stage reports.
type Summary struct {
	Processed int64
	Inserted  int64
	Updated   int64
	Skipped   int64
	Dropped   int64
	Failed    int64
	Notes     []string
}

// Add folds other into s.
func (s *Summary) Add(other Summary) {
	s.Processed += other.Processed
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Dropped += other.Dropped
	s.Failed += other.Failed
	s.Notes = append(s.Notes, other.Notes...)
}

// Notef appends a free-form note.
func (s *Summary) Notef(format string, args ...any) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

// String renders the counts on one line.
func (s Summary) String() string {
	out := fmt.Sprintf("processed=%d inserted=%d updated=%d skipped=%d dropped=%d failed=%d",
		s.Processed, s.Inserted, s.Updated, s.Skipped, s.Dropped, s.Failed)
	if len(s.Notes) > 0 {
		out += " (" + strings.Join(s.Notes, "; ") + ")"
	}
	return out
}
