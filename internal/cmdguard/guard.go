package cmdguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/cligate/internal/model"
	"github.com/ppiankov/cligate/internal/policy"
)

// Result statuses.
const (
	StatusExecuted = "executed"
	StatusDenied   = "denied"
)

// Result is the outcome of one gated invocation: either the runner output
// passed through verbatim, or a structured refusal.
type Result struct {
	Status   string           `json:"status"`
	Stdout   string           `json:"stdout,omitempty"`
	Stderr   string           `json:"stderr,omitempty"`
	ExitCode int              `json:"exit_code"`
	Reason   model.DenyReason `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Matched  []string         `json:"matched,omitempty"`
}

// Denied reports whether the command was refused by policy.
func (r *Result) Denied() bool {
	return r.Status == StatusDenied
}

// Gate evaluates policy and forwards allowed commands to a Runner.
// It keeps no state between calls and is safe for concurrent use.
type Gate struct {
	evaluator policy.Evaluator
	runner    Runner
	bin       string
}

// NewGate creates a Gate that runs allowed commands as bin via runner.
func NewGate(evaluator policy.Evaluator, runner Runner, bin string) *Gate {
	return &Gate{
		evaluator: evaluator,
		runner:    runner,
		bin:       bin,
	}
}

// Mode returns the safety mode of the underlying evaluator.
func (g *Gate) Mode() model.SafetyMode {
	return g.evaluator.Mode()
}

// Bin returns the binary path allowed commands run as.
func (g *Gate) Bin() string {
	return g.bin
}

// Run evaluates tokens and, if allowed, executes them unmodified.
// A denial is returned as a Result with a nil error and the runner is not
// called. Runner errors are returned as-is.
func (g *Gate) Run(ctx context.Context, tokens []string) (*Result, error) {
	decision := g.evaluator.Evaluate(tokens)
	if !decision.Allowed {
		return &Result{
			Status:  StatusDenied,
			Reason:  decision.Reason,
			Message: DenialMessage(decision),
			Matched: decision.Matched,
		}, nil
	}

	out, err := g.runner.Run(ctx, g.bin, tokens)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:   StatusExecuted,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
	}, nil
}

// Check evaluates policy without executing. Dry-run mode.
func (g *Gate) Check(tokens []string) model.PolicyDecision {
	return g.evaluator.Evaluate(tokens)
}

// Explain returns per-token classifications for tokens.
func (g *Gate) Explain(tokens []string) []model.TokenClassification {
	return g.evaluator.Explain(tokens)
}

// DenialMessage renders the human-readable explanation for a denial.
func DenialMessage(d model.PolicyDecision) string {
	matched := strings.Join(d.Matched, ", ")
	switch d.Reason {
	case model.CredentialExposure:
		return fmt.Sprintf("command contains credential-bearing arguments that are never executed: %s, provide manual instructions instead", matched)
	case model.MutatingInSafeMode:
		return fmt.Sprintf("safe mode is enabled and the command contains mutating operations: %s, provide manual instructions instead", matched)
	default:
		return ""
	}
}
