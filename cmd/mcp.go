package cmd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"textanywhere/internal/cache"
	"textanywhere/internal/config"
	"textanywhere/internal/errs"
	"textanywhere/internal/pipeline"
	"textanywhere/internal/selector"
	"textanywhere/internal/storage"
	"textanywhere/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing file listing and extraction tools",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v)
	if err != nil {
		return err
	}

	st, err := store.Open(c.StateDB)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer st.Close()

	src, err := openSource(cmd.Context(), c, serverStrategy(c.Strategy()), st, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	t := &toolSource{cfg: c, src: src}

	s := mcpserver.NewMCPServer("textanywhere", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(listFilesTool(), makeListFilesHandler(t))
	s.AddTool(extractFileTool(), makeExtractFileHandler(t))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// serverStrategy replaces once with none: a server outlives many fetches of
// the same path and must not serve the first staged copy forever.
func serverStrategy(s cache.Strategy) cache.Strategy {
	if s == cache.StrategyOnce {
		return cache.StrategyNone
	}
	return s
}

// toolSource serialises tool calls over one opened backend.
type toolSource struct {
	mu  sync.Mutex
	cfg *config.Config
	src *source
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(true),
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("list_files",
		mcp.WithDescription("List the non-empty files under the configured root that match the file filter, with size and last-modified time."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("pattern",
			mcp.Description("Optional regular expression the file name must match from its start. Overrides the configured file_regex."),
		),
	)
}

func extractFileTool() mcp.Tool {
	return mcp.NewTool("extract_file",
		mcp.WithDescription("Extract the text of one file under the configured root and return it split into chunks."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("File name as returned by list_files"),
		),
		mcp.WithNumber("max_chunks",
			mcp.Description("Maximum number of chunks to return (default all)"),
		),
	)
}

// --- Handler factories ---

func makeListFilesHandler(t *toolSource) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pattern := t.cfg.Pattern()
		if p := req.GetString("pattern", ""); p != "" {
			re, err := selector.CompilePattern(p)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			pattern = re
		}

		t.mu.Lock()
		defer t.mu.Unlock()

		seq, err := selector.Select(ctx, t.src.backend, selector.Criteria{Root: t.cfg.FilePath, Pattern: pattern})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}
		var files []storage.FileHandle
		for h := range seq {
			files = append(files, h)
		}
		return mcp.NewToolResultText(formatFileList(t.cfg.FilePath, files)), nil
	}
}

func makeExtractFileHandler(t *toolSource) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		maxChunks := req.GetInt("max_chunks", 0)

		records, err := t.extract(ctx, name)
		if err != nil {
			var nf *errs.NoFilesFoundError
			if errors.As(err, &nf) {
				return mcp.NewToolResultError(fmt.Sprintf("no files under %s; nothing to extract", nf.Path)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("extract failed: %v", err)), nil
		}
		if len(records) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("file %q not found or empty. Call list_files to see available names", name)), nil
		}
		return mcp.NewToolResultText(formatChunks(name, records, maxChunks)), nil
	}
}

// extract runs the pipeline over exactly the file called name, ignoring
// time bounds and the stored watermark.
func (t *toolSource) extract(ctx context.Context, name string) ([]pipeline.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := *t.cfg
	cfg.FailOnDecodeError = true
	p, err := t.src.newPipeline(&cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	var records []pipeline.Record
	crit := selector.Criteria{
		Root:    t.cfg.FilePath,
		Pattern: regexp.MustCompile("^(?:" + regexp.QuoteMeta(name) + "$)"),
	}
	_, err = p.Run(ctx, crit, func(r pipeline.Record) error {
		records = append(records, r)
		return nil
	})
	return records, err
}

// --- Formatting helpers ---

func formatFileList(root string, files []storage.FileHandle) string {
	if len(files) == 0 {
		return fmt.Sprintf("No matching files under %s", root)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Files under %s (%d)\n\n", root, len(files))
	for _, f := range files {
		modified := "unknown"
		if f.HasTimestamp() {
			modified = f.LastModified.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "- **%s** (%d bytes, modified %s)\n", f.Name, f.Size, modified)
	}
	return sb.String()
}

func formatChunks(name string, records []pipeline.Record, maxChunks int) string {
	total := len(records)
	if maxChunks > 0 && maxChunks < total {
		records = records[:maxChunks]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%d chunks", name, total)
	if len(records) < total {
		fmt.Fprintf(&sb, ", showing %d", len(records))
	}
	sb.WriteString(")\n\n")
	if records[0].UpdatedAt != "" {
		fmt.Fprintf(&sb, "**Updated:** %s\n\n", records[0].UpdatedAt)
	}
	for i, r := range records {
		fmt.Fprintf(&sb, "### Chunk %d\n\n%s\n\n", i+1, r.TextContent)
	}
	return sb.String()
}
