package policy

import (
	"strings"

	"github.com/ppiankov/cligate/internal/model"
	"github.com/ppiankov/cligate/internal/rules"
)

// Classifier tags single command-line tokens using a compiled rule table.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules *rules.Compiled
}

// NewClassifier builds a classifier over r. A nil table means the
// built-in defaults.
func NewClassifier(r *rules.Compiled) *Classifier {
	if r == nil {
		r = rules.Default()
	}
	return &Classifier{rules: r}
}

// DefaultClassifier returns a classifier over the built-in rule table.
func DefaultClassifier() *Classifier {
	return NewClassifier(nil)
}

// Rules returns the compiled table backing the classifier.
func (c *Classifier) Rules() *rules.Compiled {
	return c.rules
}

// Classify returns the classification of one token. Credential rules win
// over mutating rules. Mutating rules only apply to bare words, never to
// flags. Unrecognized tokens are Neutral.
func (c *Classifier) Classify(token string) model.TokenClassification {
	key := normalizeToken(token)

	if p, ok := c.rules.Credential.Match(key); ok {
		return model.TokenClassification{Token: token, Class: model.Credential, Pattern: p}
	}

	if !isFlag(key) {
		if p, ok := c.rules.Mutating.Match(key); ok {
			return model.TokenClassification{Token: token, Class: model.Mutating, Pattern: p}
		}
	}

	return model.TokenClassification{Token: token, Class: model.Neutral}
}

// normalizeToken lower-cases the token and strips the value from
// --flag=value so the flag name alone is matched.
func normalizeToken(token string) string {
	key := strings.ToLower(strings.TrimSpace(token))
	if isFlag(key) {
		if i := strings.IndexByte(key, '='); i >= 0 {
			key = key[:i]
		}
	}
	return key
}

func isFlag(token string) bool {
	return strings.HasPrefix(token, "-")
}
