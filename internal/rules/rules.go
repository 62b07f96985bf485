package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/cligate/internal/model"
)

// MatchKind selects how a rule pattern is compared to a token.
type MatchKind string

const (
	// MatchExact compares the whole token, case-insensitively.
	MatchExact MatchKind = "exact"
	// MatchRegex compiles the pattern as a case-insensitive regular expression.
	// Authors anchor the pattern themselves.
	MatchRegex MatchKind = "regex"
)

// Rule maps one pattern to a token classification.
type Rule struct {
	Pattern string           `yaml:"pattern" json:"pattern"`
	Class   model.TokenClass `yaml:"class" json:"class"`
	Match   MatchKind        `yaml:"match,omitempty" json:"match,omitempty"`
}

// Table is the declarative rule set. Credential and Mutating are shorthand
// for exact-match rules of that class; Rules holds anything else.
type Table struct {
	ReplaceDefaults bool     `yaml:"replace_defaults,omitempty" json:"replace_defaults,omitempty"`
	Credential      []string `yaml:"credential,omitempty" json:"credential,omitempty"`
	Mutating        []string `yaml:"mutating,omitempty" json:"mutating,omitempty"`
	Rules           []Rule   `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// All flattens the table into an ordered rule list.
func (t Table) All() []Rule {
	out := make([]Rule, 0, len(t.Credential)+len(t.Mutating)+len(t.Rules))
	for _, p := range t.Credential {
		out = append(out, Rule{Pattern: p, Class: model.Credential, Match: MatchExact})
	}
	for _, p := range t.Mutating {
		out = append(out, Rule{Pattern: p, Class: model.Mutating, Match: MatchExact})
	}
	for _, r := range t.Rules {
		if r.Match == "" {
			r.Match = MatchExact
		}
		out = append(out, r)
	}
	return out
}

// Merge returns t extended with other, or other alone when
// other.ReplaceDefaults is set.
func (t Table) Merge(other Table) Table {
	if other.ReplaceDefaults {
		other.ReplaceDefaults = false
		return other
	}
	return Table{
		Credential: append(append([]string{}, t.Credential...), other.Credential...),
		Mutating:   append(append([]string{}, t.Mutating...), other.Mutating...),
		Rules:      append(append([]Rule{}, t.Rules...), other.Rules...),
	}
}

type regexRule struct {
	re      *regexp.Regexp
	pattern string
}

// Set holds compiled rules for one class.
type Set struct {
	exact map[string]string
	regex []regexRule
}

// Match returns the pattern that matches token. token must already be
// lower-cased by the caller.
func (s *Set) Match(token string) (string, bool) {
	if p, ok := s.exact[token]; ok {
		return p, true
	}
	for _, r := range s.regex {
		if r.re.MatchString(token) {
			return r.pattern, true
		}
	}
	return "", false
}

// Len returns the number of compiled rules in the set.
func (s *Set) Len() int {
	return len(s.exact) + len(s.regex)
}

// Compiled is a rule table ready for matching. It is read-only after
// Compile and safe for concurrent use.
type Compiled struct {
	Credential Set
	Mutating   Set
	table      Table
}

// Table returns the source table.
func (c *Compiled) Table() Table {
	return c.table
}

// Compile validates and compiles a table. Unknown classes, empty patterns
// and invalid regular expressions are errors.
func Compile(t Table) (*Compiled, error) {
	c := &Compiled{
		Credential: Set{exact: map[string]string{}},
		Mutating:   Set{exact: map[string]string{}},
		table:      t,
	}

	for i, r := range t.All() {
		pattern := strings.TrimSpace(r.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i+1)
		}

		var set *Set
		switch r.Class {
		case model.Credential:
			set = &c.Credential
		case model.Mutating:
			set = &c.Mutating
		default:
			return nil, fmt.Errorf("rule %d (%s): unsupported class %q", i+1, pattern, r.Class)
		}

		switch r.Match {
		case MatchExact:
			set.exact[strings.ToLower(pattern)] = pattern
		case MatchRegex:
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid regex %q: %w", i+1, pattern, err)
			}
			set.regex = append(set.regex, regexRule{re: re, pattern: pattern})
		default:
			return nil, fmt.Errorf("rule %d (%s): unsupported match kind %q", i+1, pattern, r.Match)
		}
	}

	return c, nil
}

// MustCompile is like Compile but panics on error. Used for built-in tables.
func MustCompile(t Table) *Compiled {
	c, err := Compile(t)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultPath returns ~/.cligate/rules.yaml, or "" if home is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cligate", "rules.yaml")
}

// Load reads a rule table from YAML and merges it over the defaults.
// An empty path falls back to DefaultPath; a missing default file yields
// the built-in table. An explicitly named file must exist.
func Load(path string) (*Compiled, error) {
	c, _, err := LoadWithHash(path)
	return c, err
}

// LoadWithHash is Load plus the SHA-256 of the file bytes. When the
// built-in table is used the hash is of empty input.
func LoadWithHash(path string) (*Compiled, string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) || explicit {
				return nil, "", fmt.Errorf("failed to read rules: %w", err)
			}
			data = nil
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	t := DefaultTable
	if len(data) > 0 {
		var fileTable Table
		if err := yaml.Unmarshal(data, &fileTable); err != nil {
			return nil, "", fmt.Errorf("failed to parse rules %s: %w", path, err)
		}
		t = DefaultTable.Merge(fileTable)
	}

	c, err := Compile(t)
	if err != nil {
		return nil, "", fmt.Errorf("failed to compile rules: %w", err)
	}
	return c, hash, nil
}
