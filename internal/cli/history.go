package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	DocID    string
	After    int64
}

// HistoryEntry is one stored result.
type HistoryEntry struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Timestamp int64           `json:"timestamp"`
	Operation json.RawMessage `json:"operation"`
	Inverse   json.RawMessage `json:"inverse"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored operation results",
		Long: `List a document's stored results in sequence order.

Examples:
  layoutsync history --db ./layout.db --doc move_delete_conflict
  layoutsync history --db ./layout.db --doc my-doc --after 100 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id (required)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only results with seq greater than this")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.ReadResults(ctx, opts.DocID, opts.After)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	entries := make([]HistoryEntry, 0, len(stored))
	for _, sr := range stored {
		op, err := ir.MarshalOperation(sr.Result.Operation)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode operation", err)
		}
		inv, err := ir.MarshalOperation(sr.Result.Inverse)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode inverse", err)
		}
		entries = append(entries, HistoryEntry{
			Seq:       sr.Seq,
			ID:        sr.ID,
			UserID:    sr.Result.UserID,
			Timestamp: sr.Result.Timestamp,
			Operation: op,
			Inverse:   inv,
		})
	}

	if opts.Format == "json" {
		return out.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(w, "No history for %s.\n", opts.DocID)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIMESTAMP\tUSER\tOPERATION\tINVERSE")
	for _, sr := range stored {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			sr.Seq, sr.Result.Timestamp, sr.Result.UserID,
			ir.Describe(sr.Result.Operation), ir.Describe(sr.Result.Inverse))
	}
	return tw.Flush()
}
