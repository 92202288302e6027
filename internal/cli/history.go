package cli

import (
	"strconv"
	"time"

	"github.com/dl-alexandre/gdsync/internal/journal"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show transfer history",
	Long:  "Show recorded uploads and deletes, newest first. Without --target every target is listed.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

// historyList renders journal entries as a table
type historyList struct {
	Entries []journal.Entry `json:"entries"`
}

func (h *historyList) Headers() []string {
	return []string{"Time", "Target", "Op", "Path", "Bytes", "Result"}
}

func (h *historyList) Rows() [][]string {
	rows := make([][]string, len(h.Entries))
	for i, e := range h.Entries {
		result := "ok"
		if !e.Succeeded {
			result = truncate("failed: "+e.Error, 60)
		}
		bytes := "-"
		if e.Bytes > 0 {
			bytes = formatSize(e.Bytes)
		}
		rows[i] = []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.TargetID,
			string(e.Operation),
			truncate(e.Path, 50),
			bytes,
			result,
		}
	}
	return rows
}

func (h *historyList) EmptyMessage() string {
	return "No transfers recorded"
}

func runHistory(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, false)
	if err != nil {
		return handleError(out, "history", err)
	}
	defer sc.Close()

	entries, err := sc.journal.List(cmd.Context(), sc.target.ID, historyLimit)
	if err != nil {
		return handleError(out, "history", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	out.Verbose("Loaded %s journal entries", strconv.Itoa(len(entries)))
	return out.WriteSuccess("history", &historyList{Entries: entries})
}
