package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/RafaelSullivam/editor-sub001/internal/config"
	"github.com/RafaelSullivam/editor-sub001/internal/harness"
	"github.com/RafaelSullivam/editor-sub001/internal/metrics"
	"github.com/RafaelSullivam/editor-sub001/internal/session"
	"github.com/RafaelSullivam/editor-sub001/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter   string // scenario filter (glob on file name without extension)
	Database string // optional store to keep the traces in
	Config   string // optional CUE config file
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name      string          `json:"name"`
	Pass      bool            `json:"pass"`
	Errors    []string        `json:"errors,omitempty"`
	Cancelled int             `json:"cancelled"`
	Document  json.RawMessage `json:"document,omitempty"`
}

// RunResult is the outcome of a run.
type RunResult struct {
	Scenarios []ScenarioResult   `json:"scenarios"`
	Passed    int                `json:"passed"`
	Failed    int                `json:"failed"`
	Total     int                `json:"total"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>",
		Short: "Run editing scenarios",
		Long: `Run one scenario file, or every .yaml/.yml file under a directory.

Each scenario replays its timestamped edits through a session, flushes,
and checks its assertions against the final document and trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  layoutsync run ./scenarios/move_delete_conflict.yaml
  layoutsync run ./scenarios --filter "concurrent_*"
  layoutsync run ./scenarios --db ./layout.db
  layoutsync run ./scenarios --config ./layoutsync.cue
  layoutsync run ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist traces to this SQLite database (default in-memory)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE config file with queue settings")

	return cmd
}

func runScenarios(opts *RunOptions, target string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.logger(cmd)

	files, err := findScenarioFiles(target, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	dbPath := ":memory:"
	var sessOpts []session.Option
	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		out.Dump(cfg)
		sessOpts = cfg.SessionOptions()
		if cfg.Database != "" {
			dbPath = cfg.Database
		}
		if !opts.Verbose {
			logger = newLogger(cmd, cfg.LogLevel)
		}
	}
	if opts.Database != "" {
		dbPath = opts.Database
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	sessOpts = append(sessOpts, session.WithMetrics(metrics.NewRecorder(reg, "")))

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenarioFile(cmd.Context(), st, file, logger, out, sessOpts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	totals, err := metrics.Totals(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to gather metrics", err)
	}
	result.Metrics = totals
	for _, name := range slices.Sorted(maps.Keys(totals)) {
		out.VerboseLog("%s %g", name, totals[name])
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		writeRunText(out.Writer, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func runScenarioFile(ctx context.Context, st *store.Store, file string, logger *slog.Logger, out *OutputFormatter, sessOpts []session.Option) ScenarioResult {
	if ctx == nil {
		ctx = context.Background()
	}
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}

	out.VerboseLog("running %s (%d steps)", scenario.Name, len(scenario.Steps))
	res, err := harness.RunWithStore(ctx, scenario, st, logger, sessOpts...)
	if err != nil {
		return ScenarioResult{Name: scenario.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}
	out.Dump(res)

	doc, err := res.Document.MarshalJSON()
	if err != nil {
		return ScenarioResult{Name: scenario.Name, Errors: []string{fmt.Sprintf("encode document: %v", err)}}
	}
	return ScenarioResult{
		Name:      scenario.Name,
		Pass:      res.Pass,
		Errors:    res.Errors,
		Cancelled: res.Cancelled,
		Document:  doc,
	}
}

func writeRunText(w io.Writer, result RunResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "PASS %s\n", sr.Name)
			fmt.Fprintf(w, "  document: %s\n", sr.Document)
			continue
		}
		fmt.Fprintf(w, "FAIL %s\n", sr.Name)
		for _, e := range sr.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// findScenarioFiles returns target itself when it is a file, otherwise
// every .yaml/.yml file beneath it whose base name matches filter.
func findScenarioFiles(target, filter string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
