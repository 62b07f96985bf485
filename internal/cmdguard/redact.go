package cmdguard

import (
	"strings"

	"github.com/ppiankov/cligate/internal/model"
)

// Redacted replaces the value of a credential flag.
const Redacted = "***"

// Redact returns a copy of tokens safe to log: the value following a
// credential flag, or the value part of "--flag=value", is replaced with
// Redacted. tokens is not modified.
func (g *Gate) Redact(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	classes := g.evaluator.Explain(tokens)
	for i, c := range classes {
		if c.Class != model.Credential || !strings.HasPrefix(c.Token, "-") {
			continue
		}
		if eq := strings.IndexByte(c.Token, '='); eq >= 0 {
			out[i] = c.Token[:eq+1] + Redacted
			continue
		}
		if i+1 < len(out) && !strings.HasPrefix(out[i+1], "-") {
			out[i+1] = Redacted
		}
	}
	return out
}
