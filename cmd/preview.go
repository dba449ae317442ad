package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"textanywhere/internal/chunker"
	"textanywhere/internal/config"
	"textanywhere/internal/extract"
	"textanywhere/internal/preview"
)

var (
	flagRaw       bool
	flagClipboard bool
	flagWidth     int
	flagTokModel  string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Decode and split one local file and show its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		splitter, err := chunker.NewSplitter(v.GetInt(config.KeyChunkSize), v.GetInt(config.KeyChunkOverlap))
		if err != nil {
			return err
		}

		text, err := extract.New().Extract(cmd.Context(), path)
		if err != nil {
			return err
		}
		chunks := splitter.Split(text)

		if flagClipboard {
			if err := clipboard.WriteAll(preview.Plain(chunks)); err != nil {
				return fmt.Errorf("copy to clipboard: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Copied %d chunks to clipboard.\n", len(chunks))
		}

		if flagRaw {
			fmt.Println(preview.Plain(chunks))
			return nil
		}

		tc, err := preview.NewTokenCounter(flagTokModel)
		if err != nil {
			logger.Warn("token counts unavailable", "err", err)
		}
		md := preview.Markdown(filepath.Base(path), chunks, tc)
		out, err := preview.Render(md, flagWidth)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	previewCmd.Flags().BoolVar(&flagRaw, "raw", false, "print chunk text without rendering")
	previewCmd.Flags().BoolVar(&flagClipboard, "clipboard", false, "copy the chunk text to the clipboard")
	previewCmd.Flags().IntVar(&flagWidth, "width", 100, "word wrap width for rendering")
	previewCmd.Flags().StringVar(&flagTokModel, "token-model", preview.DefaultModel, "model whose tokenizer counts tokens")
	rootCmd.AddCommand(previewCmd)
}
