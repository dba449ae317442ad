package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"textanywhere/internal/store"
)

type column struct {
	title string
	width int
}

var runColumns = []column{
	{"STARTED", 20},
	{"STATUS", 8},
	{"SELECTED", 9},
	{"EXTRACTED", 10},
	{"FAILED", 7},
	{"CHUNKS", 8},
	{"WATERMARK", 21},
	{"RUN", 8},
}

// RenderRuns lays out run history as a table.
func RenderRuns(runs []store.Run) string {
	if len(runs) == 0 {
		return dimStyle.Render("No runs recorded yet.") + "\n"
	}

	var b strings.Builder
	cells := make([]string, len(runColumns))
	for i, c := range runColumns {
		cells[i] = headerStyle.Width(c.width).Render(c.title)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")

	for _, r := range runs {
		status, statusStyle := "ok", successStyle
		if !r.Succeeded() {
			status, statusStyle = "failed", errorStyle
		}
		watermark := "-"
		if !r.Watermark.IsZero() {
			watermark = r.Watermark.UTC().Format(time.RFC3339)
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		values := []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			strconv.Itoa(r.FilesSelected),
			strconv.Itoa(r.FilesExtracted),
			strconv.Itoa(r.FilesFailed),
			strconv.Itoa(r.Chunks),
			watermark,
			id,
		}
		for i, v := range values {
			style := cellStyle
			if i == 1 {
				style = statusStyle
			}
			cells[i] = style.Width(runColumns[i].width).Render(v)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")
		if r.Error != "" {
			b.WriteString(dimStyle.Render("  "+r.Error) + "\n")
		}
	}
	return b.String()
}
