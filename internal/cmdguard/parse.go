package cmdguard

import (
	"errors"
	"fmt"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/mattn/go-shellwords"
)

var (
	// ErrEmptyCommand is returned for a blank command string.
	ErrEmptyCommand = errors.New("empty command")
	// ErrWrongProgram is returned when the command does not invoke the CLI.
	ErrWrongProgram = errors.New("wrong command")
	// ErrShellSyntax is returned for pipes, redirections, command lists
	// and substitutions. Commands are never run through a shell.
	ErrShellSyntax = errors.New("shell operators and substitutions are not supported")
)

// ParseCommand splits command into words and checks that the first word is
// cliName. The remaining words are returned as command tokens.
func ParseCommand(cliName, command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	if strings.ContainsRune(command, '`') || strings.Contains(command, "$(") {
		return nil, fmt.Errorf("%w: %s", ErrShellSyntax, command)
	}

	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false
	words, err := p.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	if p.Position != -1 {
		return nil, fmt.Errorf("%w: %s", ErrShellSyntax, command)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}
	if words[0] != cliName {
		return nil, fmt.Errorf("%w: command must start with %s", ErrWrongProgram, cliName)
	}
	return words[1:], nil
}

// FormatCommand renders name and tokens as a shell-quoted command line.
func FormatCommand(name string, tokens []string) string {
	return shellescape.QuoteCommand(append([]string{name}, tokens...))
}
