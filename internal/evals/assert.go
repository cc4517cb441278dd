package evals

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Expectation checks how a tool was called. MinCalls defaults to 1 so
// a bare tool name means "was called at least once". InputContains and
// InputGlob constrain which calls count: a call matches when the
// substring appears in its input, or when a string value of the input
// matches the glob (scoped to InputField when set).
type Expectation struct {
	Tool          string `yaml:"tool"`
	MinCalls      *int   `yaml:"min_calls"`
	MaxCalls      *int   `yaml:"max_calls"`
	InputContains string `yaml:"input_contains"`
	InputGlob     string `yaml:"input_glob"`
	InputField    string `yaml:"input_field"`
}

// OrderRule requires some call of First to precede the first call of
// Then.
type OrderRule struct {
	First string `yaml:"first"`
	Then  string `yaml:"then"`
}

// Spec is the YAML expectations document.
type Spec struct {
	Expectations []Expectation `yaml:"expectations"`
	Order        []OrderRule   `yaml:"order"`
	Forbidden    []string      `yaml:"forbidden"`
}

// CheckResult is the verdict for one expectation.
type CheckResult struct {
	Description string `json:"description"`
	Pass        bool   `json:"pass"`
	Reason      string `json:"reason,omitempty"`
}

// Report is the full assertion outcome for one log.
type Report struct {
	LogFile string        `json:"log_file,omitempty"`
	Events  int           `json:"events"`
	Checks  []CheckResult `json:"checks"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Success bool          `json:"success"`
}

// LoadSpec reads an expectations YAML file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expectations file: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing expectations file: %w", err)
	}
	if len(spec.Expectations) == 0 && len(spec.Order) == 0 && len(spec.Forbidden) == 0 {
		return nil, fmt.Errorf("expectations file defines no checks")
	}
	return &spec, nil
}

// Assert evaluates the expectations in specPath against the JSONL log
// at logPath.
func Assert(logPath, specPath string) (*Report, error) {
	spec, err := LoadSpec(specPath)
	if err != nil {
		return nil, err
	}
	events, err := LoadEvents(logPath)
	if err != nil {
		return nil, err
	}
	report := Evaluate(events, spec)
	report.LogFile = logPath
	return report, nil
}

// Evaluate runs every check in spec against events.
func Evaluate(events []Event, spec *Spec) *Report {
	report := &Report{Events: len(events), Checks: []CheckResult{}}

	for _, exp := range spec.Expectations {
		report.Checks = append(report.Checks, checkExpectation(events, exp))
	}
	for _, rule := range spec.Order {
		report.Checks = append(report.Checks, checkOrder(events, rule))
	}
	for _, tool := range spec.Forbidden {
		report.Checks = append(report.Checks, checkForbidden(events, tool))
	}

	for _, check := range report.Checks {
		if check.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Success = report.Failed == 0
	return report
}

func checkExpectation(events []Event, exp Expectation) CheckResult {
	result := CheckResult{Description: expectationDescription(exp)}

	matches := 0
	for _, event := range events {
		if event.Tool != exp.Tool {
			continue
		}
		if exp.InputContains != "" && !strings.Contains(string(event.Input), exp.InputContains) {
			continue
		}
		if exp.InputGlob != "" && !inputMatchesGlob(event.Input, exp.InputField, exp.InputGlob) {
			continue
		}
		matches++
	}

	min := 1
	if exp.MinCalls != nil {
		min = *exp.MinCalls
	}
	if matches < min {
		result.Reason = fmt.Sprintf("matched %d calls, expected at least %d", matches, min)
		return result
	}
	if exp.MaxCalls != nil && matches > *exp.MaxCalls {
		result.Reason = fmt.Sprintf("matched %d calls, expected at most %d", matches, *exp.MaxCalls)
		return result
	}
	result.Pass = true
	return result
}

func expectationDescription(exp Expectation) string {
	desc := "tool " + exp.Tool + " called"
	if exp.InputContains != "" {
		desc += fmt.Sprintf(" with input containing %q", exp.InputContains)
	}
	if exp.InputGlob != "" {
		desc += fmt.Sprintf(" with input matching %q", exp.InputGlob)
	}
	return desc
}

// inputMatchesGlob tests the glob against the input's string values,
// or against one named field when field is set.
func inputMatchesGlob(input json.RawMessage, field, glob string) bool {
	var parsed map[string]interface{}
	if err := json.Unmarshal(input, &parsed); err != nil {
		return false
	}
	for key, value := range parsed {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if field != "" && key != field {
			continue
		}
		if matched, err := doublestar.Match(glob, s); err == nil && matched {
			return true
		}
	}
	return false
}

func checkOrder(events []Event, rule OrderRule) CheckResult {
	result := CheckResult{
		Description: fmt.Sprintf("tool %s called before %s", rule.First, rule.Then),
	}

	firstSeen := false
	for _, event := range events {
		switch event.Tool {
		case rule.First:
			firstSeen = true
		case rule.Then:
			if !firstSeen {
				result.Reason = fmt.Sprintf("%s was called before any %s call", rule.Then, rule.First)
				return result
			}
			result.Pass = true
			return result
		}
	}

	if !firstSeen {
		result.Reason = fmt.Sprintf("%s was never called", rule.First)
		return result
	}
	result.Reason = fmt.Sprintf("%s was never called", rule.Then)
	return result
}

func checkForbidden(events []Event, tool string) CheckResult {
	result := CheckResult{Description: "tool " + tool + " never called"}
	for i, event := range events {
		if event.Tool == tool {
			result.Reason = fmt.Sprintf("called at event %d", i+1)
			return result
		}
	}
	result.Pass = true
	return result
}
