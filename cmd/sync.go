package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"textanywhere/internal/config"
	"textanywhere/internal/errs"
	"textanywhere/internal/logging"
	"textanywhere/internal/pipeline"
	"textanywhere/internal/singer"
	"textanywhere/internal/store"
	"textanywhere/internal/tui"
)

var (
	flagState    string
	flagProgress bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Extract selected files and write Singer messages to stdout",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logger.With("run_id", runID, "stream", c.StreamName)
	if flagProgress {
		// The progress view owns stderr while it runs.
		log = logging.Discard()
	}

	st, err := store.Open(c.StateDB)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer st.Close()

	watermark, err := startingWatermark(flagState, c.StreamName, st)
	if err != nil {
		return err
	}

	run := store.Run{ID: runID, Stream: c.StreamName, StartedAt: time.Now()}
	stats, err := syncStream(cmd.Context(), c, st, watermark, log)
	run.FinishedAt = time.Now()
	if stats != nil {
		run.FilesSelected = stats.FilesSelected
		run.FilesExtracted = stats.FilesExtracted
		run.FilesFailed = stats.FilesFailed
		run.Chunks = stats.ChunksEmitted
		if err == nil && stats.WatermarkSet {
			run.Watermark = stats.Watermark
		}
		fmt.Fprint(os.Stderr, tui.SummarizeStats(stats))
	}
	if err != nil {
		run.Error = err.Error()
	}
	if rerr := st.RecordRun(run); rerr != nil {
		logger.Warn("record run failed", "run_id", runID, "err", rerr)
	}
	if err != nil {
		logger.Error("sync failed", "run_id", runID, "code", errs.Classify(err))
	}
	return err
}

// syncStream writes SCHEMA, one RECORD per chunk and, on success, the STATE
// checkpoint. The watermark is only persisted when every selected file was
// visited.
func syncStream(ctx context.Context, c *config.Config, st *store.SQLiteStore, watermark time.Time, log *slog.Logger) (*pipeline.Stats, error) {
	src, err := openSource(ctx, c, c.Strategy(), st, log)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	w := singer.NewWriter(out)
	if err := w.WriteSchema(c.StreamName); err != nil {
		return nil, err
	}
	emit := func(r pipeline.Record) error {
		return w.WriteRecord(c.StreamName, r)
	}

	job := func(ctx context.Context, onProgress pipeline.ProgressFunc) (*pipeline.Stats, error) {
		p, err := src.newPipeline(c, log, onProgress)
		if err != nil {
			return nil, err
		}
		return p.Run(ctx, c.Criteria(watermark), emit)
	}

	var stats *pipeline.Stats
	if flagProgress {
		stats, err = tui.RunSync(ctx, tui.Config{Stream: c.StreamName}, job)
	} else {
		stats, err = job(ctx, nil)
	}
	if err != nil {
		return stats, err
	}

	if stats.WatermarkSet {
		if err := w.WriteState(singer.NewState(c.StreamName, stats.Watermark)); err != nil {
			return stats, err
		}
		if err := st.SetWatermark(c.StreamName, stats.Watermark); err != nil {
			return stats, fmt.Errorf("save watermark: %w", err)
		}
		log.Info("watermark advanced", "watermark", pipeline.FormatTimestamp(stats.Watermark))
	}
	if err := out.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}
	return stats, nil
}

func init() {
	syncCmd.Flags().StringVar(&flagState, "state", "", "Singer state file to resume from (overrides the state DB)")
	syncCmd.Flags().BoolVar(&flagProgress, "progress", false, "show a progress view on stderr")
	rootCmd.AddCommand(syncCmd)
}
