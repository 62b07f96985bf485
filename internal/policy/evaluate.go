package policy

import "github.com/ppiankov/cligate/internal/model"

// Evaluator combines per-token classifications and the safety mode into
// a single decision. The mode is fixed at construction.
type Evaluator struct {
	classifier *Classifier
	mode       model.SafetyMode
}

// NewEvaluator builds a deterministic, side-effect free evaluator.
// Any mode other than Unsafe is treated as Safe.
func NewEvaluator(c *Classifier, mode model.SafetyMode) Evaluator {
	if c == nil {
		c = DefaultClassifier()
	}
	if mode != model.Unsafe {
		mode = model.Safe
	}
	return Evaluator{classifier: c, mode: mode}
}

// Mode returns the safety mode the evaluator was built with.
func (e Evaluator) Mode() model.SafetyMode {
	return e.mode
}

// Classifier returns the token classifier in use.
func (e Evaluator) Classifier() *Classifier {
	return e.classifier
}

// Evaluate decides whether tokens may be executed.
//
// Credential tokens deny in every mode and take precedence over mutating
// tokens. Mutating tokens deny only in safe mode.
func (e Evaluator) Evaluate(tokens []string) model.PolicyDecision {
	var credential, mutating []string
	for _, tok := range tokens {
		switch e.classifier.Classify(tok).Class {
		case model.Credential:
			credential = append(credential, tok)
		case model.Mutating:
			mutating = append(mutating, tok)
		}
	}

	if len(credential) > 0 {
		return model.Deny(model.CredentialExposure, credential)
	}
	if e.mode == model.Safe && len(mutating) > 0 {
		return model.Deny(model.MutatingInSafeMode, mutating)
	}
	return model.Allow()
}

// Explain returns the classification of every token, in order.
func (e Evaluator) Explain(tokens []string) []model.TokenClassification {
	out := make([]model.TokenClassification, len(tokens))
	for i, tok := range tokens {
		out[i] = e.classifier.Classify(tok)
	}
	return out
}

// Evaluate is a convenience wrapper for one-shot evaluation.
func Evaluate(tokens []string, mode model.SafetyMode, c *Classifier) model.PolicyDecision {
	return NewEvaluator(c, mode).Evaluate(tokens)
}
