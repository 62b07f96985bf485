package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/model"
	"github.com/ppiankov/cligate/internal/policy"
	"github.com/ppiankov/cligate/internal/rules"
)

// DefaultCLI is the program name assumed when a scenario does not set one.
const DefaultCLI = "nebius"

// parseMode accepts safe/unsafe as well as the true/false spelling of the
// safe_mode setting. Empty means fallback.
func parseMode(s string, fallback model.SafetyMode) (model.SafetyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "safe":
		return model.Safe, nil
	case "unsafe":
		return model.Unsafe, nil
	default:
		return model.ParseSafetyMode(s)
	}
}

// Run evaluates all cases in a scenario against the compiled rules.
// Cases are independent; a case whose command cannot be parsed fails.
func Run(s *Scenario, compiled *rules.Compiled) *RunResult {
	classifier := policy.NewClassifier(compiled)
	cli := s.CLI
	if cli == "" {
		cli = DefaultCLI
	}

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	defaultMode, defaultErr := parseMode(s.Mode, model.DefaultSafetyMode)

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Command:  c.Command,
			Expected: normalizeExpect(c.Expect),
		}

		tokens, mode, err := caseInput(c, cli, defaultMode, defaultErr)
		if err != nil {
			cr.Actual = "error"
			cr.Error = err.Error()
			result.Failed++
			result.Cases = append(result.Cases, cr)
			continue
		}
		if cr.Command == "" {
			cr.Command = cmdguard.FormatCommand(cli, tokens)
		}
		cr.Mode = string(mode)

		decision := policy.Evaluate(tokens, mode, classifier)
		cr.Actual = actualOf(decision)
		cr.Matched = strings.Join(decision.Matched, ", ")

		if expectationMet(cr.Expected, decision) {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func caseInput(c Case, cli string, defaultMode model.SafetyMode, defaultErr error) ([]string, model.SafetyMode, error) {
	var mode model.SafetyMode
	if c.Mode != "" {
		m, err := parseMode(c.Mode, defaultMode)
		if err != nil {
			return nil, "", err
		}
		mode = m
	} else {
		if defaultErr != nil {
			return nil, "", defaultErr
		}
		mode = defaultMode
	}

	if len(c.Args) > 0 {
		return c.Args, mode, nil
	}
	tokens, err := cmdguard.ParseCommand(cli, c.Command)
	if err != nil {
		return nil, "", err
	}
	return tokens, mode, nil
}

func normalizeExpect(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case ExpectAllow, ExpectDeny:
		return strings.ToLower(s)
	}
	return strings.ToUpper(s)
}

func actualOf(d model.PolicyDecision) string {
	if d.Allowed {
		return ExpectAllow
	}
	return string(d.Reason)
}

func expectationMet(expected string, d model.PolicyDecision) bool {
	switch expected {
	case ExpectAllow:
		return d.Allowed
	case ExpectDeny:
		return !d.Allowed
	default:
		return !d.Allowed && string(d.Reason) == expected
	}
}

// Load reads a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and the rules file, and runs.
func LoadAndRun(path, rulesPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	compiled, err := rules.Load(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	result := Run(s, compiled)
	result.File = path

	return result, nil
}
