package model

import (
	"fmt"
	"strings"
)

// SafetyMode selects whether mutating CLI operations may run.
type SafetyMode string

const (
	Safe   SafetyMode = "safe"
	Unsafe SafetyMode = "unsafe"
)

// DefaultSafetyMode is used when no mode is configured.
const DefaultSafetyMode = Safe

// SafetyModeFromBool maps the boolean safe_mode setting to a SafetyMode.
func SafetyModeFromBool(safe bool) SafetyMode {
	if safe {
		return Safe
	}
	return Unsafe
}

// ParseSafetyMode accepts "true"/"false" (case-insensitive, surrounding
// whitespace ignored). An empty string yields the default mode. Anything
// else is an error; the caller decides how to surface it.
func ParseSafetyMode(s string) (SafetyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultSafetyMode, nil
	case "true":
		return Safe, nil
	case "false":
		return Unsafe, nil
	default:
		return "", fmt.Errorf("unrecognized safe mode value %q (expected true or false)", s)
	}
}

// TokenClass is the classification of a single command-line token.
type TokenClass string

const (
	Credential TokenClass = "credential"
	Mutating   TokenClass = "mutating"
	Neutral    TokenClass = "neutral"
)

// Valid reports whether c is one of the known classes.
func (c TokenClass) Valid() bool {
	switch c {
	case Credential, Mutating, Neutral:
		return true
	}
	return false
}

// TokenClassification is the classifier output for one token.
// Pattern holds the rule that matched; empty for Neutral.
type TokenClassification struct {
	Token   string     `json:"token"`
	Class   TokenClass `json:"class"`
	Pattern string     `json:"pattern,omitempty"`
}

// DenyReason explains why a command was refused.
type DenyReason string

const (
	CredentialExposure DenyReason = "CREDENTIAL_EXPOSURE"
	MutatingInSafeMode DenyReason = "MUTATING_IN_SAFE_MODE"
)

// PolicyDecision is the sole output of command evaluation.
// The zero value is not meaningful; use Allow or Deny.
type PolicyDecision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Matched []string   `json:"matched,omitempty"`
}

// Allow returns an allowing decision.
func Allow() PolicyDecision {
	return PolicyDecision{Allowed: true}
}

// Deny returns a denying decision. matched lists the offending tokens.
func Deny(reason DenyReason, matched []string) PolicyDecision {
	m := make([]string, len(matched))
	copy(m, matched)
	return PolicyDecision{Reason: reason, Matched: m}
}

// String renders the decision for logs.
func (d PolicyDecision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny(" + string(d.Reason) + ")"
}
