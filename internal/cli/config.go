package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RafaelSullivam/editor-sub001/internal/config"
)

// ConfigView is the effective configuration as printed.
type ConfigView struct {
	Tolerance        int64  `json:"tolerance"`
	Retention        int64  `json:"retention"`
	MaxHistory       int    `json:"max_history"`
	AutosaveInterval string `json:"autosave_interval"`
	Database         string `json:"database"`
	LogLevel         string `json:"log_level"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [file.cue]",
		Short: "Validate a config file and print the effective settings",
		Long: `Validate a CUE config file against the built-in schema and print the
effective settings with defaults filled in. Without a file the defaults
are printed.

Exit codes:
  0 - Config is valid
  1 - Config does not satisfy the schema
  2 - Command error (file not readable)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runConfig(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg := config.Default()
	if len(args) == 1 {
		var err error
		cfg, err = config.Load(args[0])
		var verr *config.ValidationError
		switch {
		case errors.As(err, &verr):
			_ = out.Error("E_CONFIG", verr.Error(), nil)
			return WrapExitError(ExitFailure, "invalid config", err)
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	out.Dump(cfg)

	view := ConfigView{
		Tolerance:        cfg.Tolerance,
		Retention:        cfg.Retention,
		MaxHistory:       cfg.MaxHistory,
		AutosaveInterval: cfg.AutosaveInterval.String(),
		Database:         cfg.Database,
		LogLevel:         cfg.LogLevel.String(),
	}
	if opts.Format == "json" {
		return out.Success(view)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "tolerance:         %d\n", view.Tolerance)
	fmt.Fprintf(w, "retention:         %d\n", view.Retention)
	fmt.Fprintf(w, "max_history:       %d\n", view.MaxHistory)
	fmt.Fprintf(w, "autosave_interval: %s\n", view.AutosaveInterval)
	fmt.Fprintf(w, "database:          %q\n", view.Database)
	fmt.Fprintf(w, "log_level:         %s\n", view.LogLevel)
	return nil
}
