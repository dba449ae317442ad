package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"textanywhere/internal/config"
	"textanywhere/internal/store"
	"textanywhere/internal/tui"
)

var flagLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent sync runs from the state DB",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(v.GetString(config.KeyStateDB))
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer st.Close()

		runs, err := st.ListRuns(flagLimit)
		if err != nil {
			return err
		}
		fmt.Println(tui.Title("Recent runs"))
		fmt.Print(tui.RenderRuns(runs))
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
