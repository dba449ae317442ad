package tui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"textanywhere/internal/pipeline"
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

// SyncFunc runs one extraction and reports progress through onProgress.
type SyncFunc func(ctx context.Context, onProgress pipeline.ProgressFunc) (*pipeline.Stats, error)

// Config holds configuration passed from the CLI layer.
type Config struct {
	Stream string
	// Output receives the rendered view; defaults to stderr so stdout stays
	// free for records.
	Output io.Writer
}

// RunSync shows a progress view while job runs and returns its result.
// ctrl+c cancels the job and waits for it to stop.
func RunSync(ctx context.Context, cfg Config, job SyncFunc) (*pipeline.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	ref := &programRef{}
	model := newProgressModel(cfg.Stream, cancel)
	p := tea.NewProgram(model, tea.WithOutput(out))
	ref.p = p

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		stats, err := job(ctx, func(phase string, processed, total int) {
			ref.p.Send(progressMsg{phase: phase, processed: processed, total: total})
		})
		ref.p.Send(doneMsg{stats: stats, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m := final.(progressModel)
	return m.stats, m.err
}
