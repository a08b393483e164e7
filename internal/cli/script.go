package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script drives the sub command: setup statements establish table
// contents, subscriptions register continuous queries, and steps are the
// transactions whose subscription updates get reported.
type Script struct {
	// Name identifies the script in output and logs.
	Name string `yaml:"name"`

	// Description explains what the script demonstrates.
	Description string `yaml:"description,omitempty"`

	// Setup statements run before any subscription registers.
	Setup []string `yaml:"setup,omitempty"`

	// Subscriptions are the continuous queries to register.
	Subscriptions []ScriptSubscription `yaml:"subscriptions"`

	// Steps run one statement per committed transaction, reporting each
	// transaction's subscription updates.
	Steps []string `yaml:"steps"`
}

// ScriptSubscription is one continuous query with its owning connection.
type ScriptSubscription struct {
	Conn  string `yaml:"conn,omitempty"`
	Query string `yaml:"query"`
}

// LoadScript reads and parses a script YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently dropping steps.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScript(&script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Subscriptions) == 0 {
		return fmt.Errorf("subscriptions list is required and must be non-empty")
	}
	for i, sub := range s.Subscriptions {
		if sub.Query == "" {
			return fmt.Errorf("subscriptions[%d]: query is required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, stmt := range s.Steps {
		if stmt == "" {
			return fmt.Errorf("steps[%d]: statement must not be empty", i)
		}
	}
	return nil
}
