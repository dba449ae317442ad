package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"textanywhere/internal/storage"
)

var fileColumns = []column{
	{"MODIFIED", 21},
	{"SIZE", 10},
	{"PATH", 0},
}

// RenderFiles lays out a dry-run selection as a table.
func RenderFiles(files []storage.FileHandle) string {
	if len(files) == 0 {
		return dimStyle.Render("No files would be extracted.") + "\n"
	}

	var b strings.Builder
	cells := make([]string, len(fileColumns))
	for i, c := range fileColumns {
		cells[i] = headerStyle.Width(c.width).Render(c.title)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")

	var total int64
	for _, f := range files {
		total += f.Size
		modified := "-"
		if f.HasTimestamp() {
			modified = f.LastModified.UTC().Format(time.RFC3339)
		}
		values := []string{modified, strconv.FormatInt(f.Size, 10), f.Path}
		for i, v := range values {
			cells[i] = cellStyle.Width(fileColumns[i].width).Render(v)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d files, %d bytes", len(files), total)) + "\n")
	return b.String()
}
