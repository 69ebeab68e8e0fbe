// Package config loads runtime tunables from CUE files.
//
// A config file is unified with the embedded #Config schema, so unknown
// fields and out-of-range values are rejected and missing fields take
// their defaults. An empty file is a valid config.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/RafaelSullivam/editor-sub001/internal/engine"
	"github.com/RafaelSullivam/editor-sub001/internal/session"
)

//go:embed schema.cue
var schemaSrc string

// Config holds the effective settings.
type Config struct {
	Tolerance        int64
	Retention        int64
	MaxHistory       int
	AutosaveInterval time.Duration
	Database         string
	LogLevel         slog.Level
}

// Default returns the settings an empty config file produces.
func Default() Config {
	return Config{
		Tolerance:        engine.DefaultTolerance,
		Retention:        engine.DefaultRetention,
		MaxHistory:       engine.DefaultMaxHistory,
		AutosaveInterval: session.DefaultAutosaveInterval,
		LogLevel:         slog.LevelInfo,
	}
}

// ValidationError reports a config that does not satisfy the schema.
type ValidationError struct {
	File    string
	Details string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.File, e.Details)
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, path)
}

// Parse validates src as a config. filename is used in error positions.
func Parse(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, validationError(filename, err)
	}

	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, validationError(filename, err)
	}

	var (
		cfg      Config
		autosave string
		level    string
	)
	fields := []struct {
		path string
		dst  any
	}{
		{"tolerance", &cfg.Tolerance},
		{"retention", &cfg.Retention},
		{"max_history", &cfg.MaxHistory},
		{"autosave_interval", &autosave},
		{"database", &cfg.Database},
		{"log_level", &level},
	}
	for _, f := range fields {
		fv := v.LookupPath(cue.ParsePath(f.path))
		if d, ok := fv.Default(); ok {
			fv = d
		}
		if err := fv.Decode(f.dst); err != nil {
			return Config{}, validationError(filename, err)
		}
	}

	d, err := time.ParseDuration(autosave)
	if err != nil || d <= 0 {
		return Config{}, &ValidationError{
			File:    filename,
			Details: fmt.Sprintf("autosave_interval: %q is not a positive duration", autosave),
		}
	}
	cfg.AutosaveInterval = d

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, &ValidationError{File: filename, Details: err.Error()}
	}

	return cfg, nil
}

// validationError flattens every CUE error into one message, one per line.
func validationError(filename string, err error) error {
	details := strings.TrimSpace(errors.Details(err, nil))
	return &ValidationError{File: filename, Details: details}
}

// QueueOptions translates the config to queue options.
func (c Config) QueueOptions() []engine.Option {
	return []engine.Option{
		engine.WithTolerance(c.Tolerance),
		engine.WithRetention(c.Retention),
		engine.WithMaxHistory(c.MaxHistory),
	}
}

// SessionOptions translates the config to session options, queue options
// included. Storage is left to the caller since it needs opening.
func (c Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithQueueOptions(c.QueueOptions()...),
		session.WithAutosaveInterval(c.AutosaveInterval),
	}
}
