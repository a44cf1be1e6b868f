package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show in-memory server statistics: model calls, tool calls and storage
timings with token counts. Counters reset when the server restarts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get server stats: %w", err)
		}
		printServerStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func printServerStats(w io.Writer, stats *metrics.Snapshot) {
	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", stats.UptimeSeconds)

	sections := []struct {
		title string
		op    *metrics.OperationSnapshot
	}{
		{"LLM Stream", stats.LLMStream},
		{"LLM Generate", stats.LLMGenerate},
		{"LLM Object", stats.LLMObject},
		{"Tool Calls", stats.ToolCall},
		{"DB Read", stats.DBRead},
		{"DB Write", stats.DBWrite},
	}
	for _, s := range sections {
		if s.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", s.title)
		printOpStats(w, s.op)
		printTokenStats(w, s.op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Fprintln(w)
}
