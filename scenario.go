package staging

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes one scripted agent exchange: the message to send and
// what the suites expect back. Scenarios live in YAML files so suites and the
// smoke CLI share a single source of prompts.
type Scenario struct {
	Name    string      `yaml:"name"`
	Agent   string      `yaml:"agent"`
	Message string      `yaml:"message"`
	Expect  Expectation `yaml:"expect"`
}

// Expectation is the assertion side of a scenario.
type Expectation struct {
	EventTypes []string `yaml:"event_types"`
	Keywords   []string `yaml:"keywords"`
	MinLength  int      `yaml:"min_length"`
	MinScore   int      `yaml:"min_score"`
}

// Validate checks the scenario is runnable.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario: name required")
	}
	if strings.TrimSpace(s.Message) == "" {
		return fmt.Errorf("scenario %q: message required", s.Name)
	}
	if s.Expect.MinScore < 0 || s.Expect.MinScore > 100 {
		return fmt.Errorf("scenario %q: min_score must be 0-100", s.Name)
	}
	return nil
}

// LoadScenarios parses a YAML scenario file and validates every entry.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return ParseScenarios(data)
}

// ParseScenarios parses YAML scenario content.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scenario: parse: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario: no scenarios defined")
	}
	for _, s := range doc.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Scenarios, nil
}

// DefaultScenarios returns the built-in golden-path smoke scenario used when
// no scenario file is supplied.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:    "golden-path-smoke",
			Agent:   "golden_path",
			Message: "What should I focus on to improve my team's deployment frequency? Give concrete steps.",
			Expect: Expectation{
				EventTypes: []string{"agent_started", "agent_completed"},
				Keywords:   []string{"deploy"},
				MinLength:  50,
				MinScore:   25,
			},
		},
	}
}
