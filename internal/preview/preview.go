// Package preview renders the chunks of one document for a human to inspect.
package preview

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	tiktoken "github.com/pkoukk/tiktoken-go"

	"textanywhere/internal/chunker"
)

// DefaultModel picks the tiktoken encoding used for counts.
const DefaultModel = "gpt-4o"

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

type tiktokenCounter struct {
	tke *tiktoken.Tiktoken
}

func (c *tiktokenCounter) CountTokens(text string) int {
	return len(c.tke.EncodeOrdinary(text))
}

// NewTokenCounter loads the encoding for model. The first call may need
// network access to fetch the BPE ranks.
func NewTokenCounter(model string) (TokenCounter, error) {
	if model == "" {
		model = DefaultModel
	}
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
	}
	return &tiktokenCounter{tke: tke}, nil
}

// Markdown lays out chunks as a markdown document. tc may be nil, in which
// case token counts are omitted.
func Markdown(name string, chunks []chunker.Chunk, tc TokenCounter) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)
	if len(chunks) == 0 {
		sb.WriteString("_No text extracted._\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d chunks\n\n", len(chunks))

	for _, c := range chunks {
		fmt.Fprintf(&sb, "## Chunk %d\n\n", c.Index+1)
		fmt.Fprintf(&sb, "**Chars:** %d–%d (%d)", c.Start, c.End, utf8.RuneCountInString(c.Text))
		if tc != nil {
			fmt.Fprintf(&sb, "  \n**Tokens:** %d", tc.CountTokens(c.Text))
		}
		sb.WriteString("\n\n")
		fence := fenceFor(c.Text)
		fmt.Fprintf(&sb, "%s\n%s\n%s\n\n", fence, c.Text, fence)
	}
	return sb.String()
}

// fenceFor returns a backtick fence longer than any run inside text.
func fenceFor(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

// Render formats markdown for the terminal.
func Render(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return out, nil
}

// Plain returns the chunk texts separated for piping or the clipboard.
func Plain(chunks []chunker.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n---\n\n")
}
