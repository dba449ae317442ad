package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"textanywhere/internal/config"
	"textanywhere/internal/singer"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Print the Singer catalog for the configured stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stream := v.GetString(config.KeyStreamName)
		if stream == "" {
			stream = "file"
		}
		out, err := json.MarshalIndent(singer.NewCatalog(stream), "", "  ")
		if err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
