package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// Scenario is one editing session to replay.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tolerance overrides the queue's concurrency window when set.
	Tolerance *int64 `yaml:"tolerance,omitempty"`

	// Document is the starting element sequence.
	Document []ElementSpec `yaml:"document"`

	// Steps are applied in file order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the final flush.
	Assertions []Assertion `yaml:"assertions"`
}

// ElementSpec is one starting element.
type ElementSpec struct {
	ID    string         `yaml:"id"`
	Props map[string]any `yaml:"props,omitempty"`
}

// Step is one user action at a point in time.
type Step struct {
	User string `yaml:"user"`
	At   int64  `yaml:"at"`

	// Op is an operation wire record. Required unless Undo is set.
	Op map[string]any `yaml:"op,omitempty"`

	// Undo reverts the user's newest applied operation instead.
	Undo bool `yaml:"undo,omitempty"`

	// Flush resolves and applies everything pending after this step.
	Flush bool `yaml:"flush,omitempty"`
}

// Assertion validates the final document or trace.
type Assertion struct {
	Type string `yaml:"type"`

	// IDs is the expected element order (final_ids).
	IDs []string `yaml:"ids,omitempty"`

	// Element and Expect select and subset-match properties (final_props).
	Element string         `yaml:"element,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of cancellations (cancelled_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected kind sequence (trace_kinds).
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalIDs       = "final_ids"
	AssertFinalProps     = "final_props"
	AssertCancelledCount = "cancelled_count"
	AssertTraceKinds     = "trace_kinds"
)

var assertionTypes = []string{AssertFinalIDs, AssertFinalProps, AssertCancelledCount, AssertTraceKinds}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Tolerance != nil && *s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %d", *s.Tolerance)
	}

	for i, el := range s.Document {
		if el.ID == "" {
			return fmt.Errorf("document[%d]: id is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.User == "" {
			return fmt.Errorf("steps[%d]: user is required", i)
		}
		switch {
		case step.Undo && step.Op != nil:
			return fmt.Errorf("steps[%d]: op and undo are mutually exclusive", i)
		case !step.Undo && step.Op == nil:
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if step.Op != nil {
			if _, err := step.Operation(); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if !slices.Contains(assertionTypes, a.Type) {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// Operation decodes the step's wire record.
func (s Step) Operation() (ir.Operation, error) {
	rec, err := ir.ObjectFromAny(s.Op)
	if err != nil {
		return nil, fmt.Errorf("op: %w", err)
	}
	op, err := ir.DecodeOperation(rec)
	if err != nil {
		return nil, fmt.Errorf("op: %w", err)
	}
	return op, nil
}

// InitialDocument builds the starting document.
func (s *Scenario) InitialDocument() (ir.Document, error) {
	doc := make(ir.Document, 0, len(s.Document))
	for i, el := range s.Document {
		props, err := ir.ObjectFromAny(el.Props)
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		doc = append(doc, ir.Element{ID: el.ID, Props: props})
	}
	return doc, nil
}
