package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RafaelSullivam/editor-sub001/internal/session"
	"github.com/RafaelSullivam/editor-sub001/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	DocID    string // optional - one document only
}

// DocumentReplay is one rebuilt document.
type DocumentReplay struct {
	DocID    string          `json:"doc_id"`
	Seq      int64           `json:"seq"`
	Elements int             `json:"elements"`
	Document json.RawMessage `json:"document"`
}

// ReplayResult holds every rebuilt document.
type ReplayResult struct {
	Documents []DocumentReplay `json:"documents"`
	Total     int              `json:"total"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild documents from stored history",
		Long: `Rebuild documents from their latest snapshot plus the results stored
after it, applied in sequence order.

Exit codes:
  0 - Replay succeeded
  2 - Command error (database not found, corrupt history, etc.)

Examples:
  layoutsync replay --db ./layout.db
  layoutsync replay --db ./layout.db --doc 0190d6a4-...
  layoutsync replay --db ./layout.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "replay one document only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	result := ReplayResult{Documents: make([]DocumentReplay, 0, len(ids)), Total: len(ids)}
	for _, id := range ids {
		doc, seq, err := session.Restore(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay %s", id), err)
		}
		out.VerboseLog("%s: rebuilt %d elements at seq %d", id, len(doc), seq)

		raw, err := doc.MarshalJSON()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to encode %s", id), err)
		}
		result.Documents = append(result.Documents, DocumentReplay{
			DocID:    id,
			Seq:      seq,
			Elements: len(doc),
			Document: raw,
		})
	}

	if opts.Format == "json" {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No documents found in database.")
		return nil
	}
	for _, d := range result.Documents {
		fmt.Fprintf(w, "%s seq=%d elements=%d\n", d.DocID, d.Seq, d.Elements)
		fmt.Fprintf(w, "  %s\n", d.Document)
	}
	return nil
}

// documentIDs returns only if set, otherwise every document in st.
func documentIDs(ctx context.Context, st *store.Store, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	ids, err := st.ListDocuments(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list documents", err)
	}
	return ids, nil
}

// openExisting opens a database file that must already exist, so a typo
// in --db does not silently create an empty one.
func openExisting(path string) (*store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
