package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"textanywhere/internal/pipeline"
)

type progressModel struct {
	stream    string
	spinner   spinner.Model
	bar       progress.Model
	phase     string
	processed int
	total     int
	canceling bool
	done      bool
	stats     *pipeline.Stats
	err       error
	cancel    context.CancelFunc
}

func newProgressModel(stream string, cancel context.CancelFunc) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return progressModel{
		stream:  stream,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		phase:   "Listing files...",
		cancel:  cancel,
	}
}

// doneMsg is sent when the sync returns.
type doneMsg struct {
	stats *pipeline.Stats
	err   error
}

// progressMsg is sent after each processed file.
type progressMsg struct {
	phase     string
	processed int
	total     int
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.canceling {
			m.canceling = true
			m.phase = "Stopping after the current file..."
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, tea.Quit
	case progressMsg:
		m.phase = msg.phase
		m.processed = msg.processed
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	p := float64(m.processed) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p
}

func (m progressModel) View() string {
	s := "\n"
	s += titleStyle.Render("  Extracting "+m.stream) + "\n\n"

	if m.done {
		switch {
		case errors.Is(m.err, context.Canceled):
			s += warnStyle.Render("  Sync canceled") + "\n"
		case m.err != nil:
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
		default:
			s += successStyle.Render("  ✓ Sync complete") + "\n"
		}
		if m.stats != nil {
			s += "\n" + SummarizeStats(m.stats)
		}
		return s + "\n"
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += "  " + m.bar.ViewAs(m.percent()) + "\n"
		s += fmt.Sprintf("  %d / %d files processed\n", m.processed, m.total)
	}
	s += "\n"
	s += dimStyle.Render("  ctrl+c to stop") + "\n"
	return s
}

// SummarizeStats renders the end-of-run counters.
func SummarizeStats(st *pipeline.Stats) string {
	s := fmt.Sprintf("  Files:  %d listed, %d selected, %d extracted, %d failed\n",
		st.FilesListed, st.FilesSelected, st.FilesExtracted, st.FilesFailed)
	s += fmt.Sprintf("  Chunks: %d\n", st.ChunksEmitted)
	if st.WatermarkSet {
		s += fmt.Sprintf("  Watermark: %s\n", pipeline.FormatTimestamp(st.Watermark))
	}
	return s
}
