package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RafaelSullivam/editor-sub001/internal/session"
)

// CompactOptions holds flags for the compact command.
type CompactOptions struct {
	*RootOptions
	Database string
	DocID    string
}

// CompactResult reports one compacted document.
type CompactResult struct {
	DocID  string `json:"doc_id"`
	Seq    int64  `json:"seq"`
	Pruned int64  `json:"pruned"`
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Snapshot documents and prune the history they cover",
		Long: `Rebuild each document, store a snapshot at its last seq, then delete
the results that snapshot covers. Replay output is unchanged.

Examples:
  layoutsync compact --db ./layout.db
  layoutsync compact --db ./layout.db --doc my-doc`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "compact one document only")

	return cmd
}

func runCompact(opts *CompactOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := documentIDs(ctx, st, opts.DocID)
	if err != nil {
		return err
	}

	results := make([]CompactResult, 0, len(ids))
	for _, id := range ids {
		doc, seq, err := session.Restore(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to rebuild %s", id), err)
		}
		if err := st.WriteSnapshot(ctx, id, seq, doc); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to snapshot %s", id), err)
		}
		pruned, err := st.PruneResults(ctx, id, seq+1)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to prune %s", id), err)
		}
		out.VerboseLog("%s: snapshot at seq %d, pruned %d results", id, seq, pruned)
		results = append(results, CompactResult{DocID: id, Seq: seq, Pruned: pruned})
	}

	if opts.Format == "json" {
		return out.Success(results)
	}
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "No documents found in database.")
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s: snapshot at seq %d, pruned %d results\n", r.DocID, r.Seq, r.Pruned)
	}
	return nil
}
