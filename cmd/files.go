package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"textanywhere/internal/config"
	"textanywhere/internal/selector"
	"textanywhere/internal/storage"
	"textanywhere/internal/store"
	"textanywhere/internal/tui"
)

var flagFull bool

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the files the next sync would extract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v)
		if err != nil {
			return err
		}

		var watermark time.Time
		if !flagFull {
			st, err := store.Open(c.StateDB)
			if err != nil {
				return fmt.Errorf("open state db: %w", err)
			}
			defer st.Close()
			if watermark, err = startingWatermark(flagState, c.StreamName, st); err != nil {
				return err
			}
		}

		backend, err := storage.New(cmd.Context(), c.StorageOptions())
		if err != nil {
			return err
		}
		defer backend.Close()

		seq, err := selector.Select(cmd.Context(), backend, c.Criteria(watermark))
		if err != nil {
			return err
		}
		var files []storage.FileHandle
		for h := range seq {
			files = append(files, h)
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		fmt.Print(tui.RenderFiles(files))
		return nil
	},
}

func init() {
	filesCmd.Flags().BoolVar(&flagFull, "full", false, "ignore the stored watermark")
	filesCmd.Flags().StringVar(&flagState, "state", "", "Singer state file to resume from (overrides the state DB)")
	rootCmd.AddCommand(filesCmd)
}
