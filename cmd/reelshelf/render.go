package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"reelshelf/internal/services"
	"reelshelf/internal/stageexec"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var summaryHeaders = []string{"Stage", "Status", "Processed", "Inserted", "Updated", "Skipped", "Dropped", "Failed", "Elapsed", "Notes"}

func renderSummary(results []stageexec.Result, interactive bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		s := r.Summary
		notes := strings.Join(s.Notes, "; ")
		if r.Err != nil {
			notes = strings.TrimSpace(r.Err.Error())
		}
		rows = append(rows, []string{
			r.Name,
			resultStatus(r),
			strconv.FormatInt(s.Processed, 10),
			strconv.FormatInt(s.Inserted, 10),
			strconv.FormatInt(s.Updated, 10),
			strconv.FormatInt(s.Skipped, 10),
			strconv.FormatInt(s.Dropped, 10),
			strconv.FormatInt(s.Failed, 10),
			r.Elapsed.Round(time.Millisecond).String(),
			notes,
		})
	}
	if !interactive {
		return renderPlain(summaryHeaders, rows)
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	return renderTable(summaryHeaders, rows, aligns)
}

func resultStatus(r stageexec.Result) string {
	switch {
	case r.Canceled:
		return "canceled"
	case r.Aborted:
		return "aborted"
	case r.Err != nil:
		return "failed (" + services.Kind(r.Err) + ")"
	default:
		return "ok"
	}
}
