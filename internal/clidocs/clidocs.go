// Package clidocs retrieves read-only metadata from the wrapped CLI:
// configured profiles, the service tree and per-service documentation.
// It never runs anything that changes CLI state and does not go through
// the policy gate.
package clidocs

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/cligate/internal/cmdguard"
)

// Default service classification for the nebius CLI.
var (
	DefaultServiceGroups  = []string{"iam", "msp"}
	DefaultSystemServices = []string{"config", "profile", "help", "update", "version"}
)

const defaultMarker = "[default]"

// Profile is one configured CLI profile.
type Profile struct {
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Service is one entry of the CLI service tree. NestedServices is only
// populated for service groups.
type Service struct {
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	NestedServices []Service `json:"nested_services"`
}

// Options configures a Client.
type Options struct {
	Name           string
	Bin            string
	ServiceGroups  []string
	SystemServices []string
}

// Client runs documentation commands against the CLI binary.
type Client struct {
	runner cmdguard.Runner
	name   string
	bin    string
	groups map[string]bool
	system map[string]bool
}

// New creates a Client. Nil service lists fall back to the defaults.
func New(runner cmdguard.Runner, opts Options) *Client {
	groups := opts.ServiceGroups
	if groups == nil {
		groups = DefaultServiceGroups
	}
	system := opts.SystemServices
	if system == nil {
		system = DefaultSystemServices
	}
	return &Client{
		runner: runner,
		name:   opts.Name,
		bin:    opts.Bin,
		groups: toSet(groups),
		system: toSet(system),
	}
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// IsServiceGroup reports whether name is a configured service group.
func (c *Client) IsServiceGroup(name string) bool {
	return c.groups[name]
}

// run executes a read-only command and returns stdout. A spawn error or
// non-zero exit is logged and reported as ok=false.
func (c *Client) run(ctx context.Context, args ...string) (string, bool) {
	log := logrus.WithField("command", cmdguard.FormatCommand(c.name, args))
	out, err := c.runner.Run(ctx, c.bin, args)
	if err != nil {
		log.WithError(err).Error("CLI command failed")
		return "", false
	}
	if out.ExitCode != 0 {
		log.WithField("exit_code", out.ExitCode).Errorf("CLI error: %s", strings.TrimSpace(out.Stderr))
		return "", false
	}
	return out.Stdout, true
}

// Installed reports whether `<bin> --help` runs successfully.
func (c *Client) Installed(ctx context.Context) bool {
	_, ok := c.run(ctx, "--help")
	return ok
}

// Profiles lists configured profiles keyed by name. CLI failures yield an
// empty map.
func (c *Client) Profiles(ctx context.Context) map[string]Profile {
	logrus.Info("Getting CLI profiles")
	out, ok := c.run(ctx, "profile", "list")
	if !ok {
		return map[string]Profile{}
	}
	return parseProfiles(out)
}

func parseProfiles(out string) map[string]Profile {
	profiles := map[string]Profile{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p := Profile{Name: line}
		if strings.Contains(line, defaultMarker) {
			p.Name = strings.TrimSpace(strings.ReplaceAll(line, defaultMarker, ""))
			p.IsActive = true
		}
		profiles[p.Name] = p
	}
	return profiles
}

// Services returns the service tree. With an empty group the root
// services are listed, otherwise the services inside group.
func (c *Client) Services(ctx context.Context, group string) []Service {
	if group == "" {
		logrus.Info("Getting available root services")
	} else {
		logrus.WithField("group", group).Info("Getting available services")
	}
	return c.services(ctx, group)
}

func (c *Client) services(ctx context.Context, group string) []Service {
	args := []string{"--help"}
	if group != "" {
		args = []string{"help", group}
	}
	out, ok := c.run(ctx, args...)
	if !ok {
		return []Service{}
	}

	entries, found := parseAvailableCommands(out)
	if !found {
		logrus.Errorf("CLI unexpected output: %s", strings.TrimSpace(out))
		return []Service{}
	}

	services := []Service{}
	for _, e := range entries {
		if c.system[e.name] {
			continue
		}
		name := e.name
		if group != "" {
			name = group + " " + name
		}
		svc := Service{Name: name, Description: e.description, NestedServices: []Service{}}
		if c.groups[name] {
			svc.NestedServices = c.services(ctx, name)
		}
		services = append(services, svc)
	}
	return services
}

type commandEntry struct {
	name        string
	description string
}

var commandLine = regexp.MustCompile(`^[ \t]{1,2}\w+`)

// parseAvailableCommands extracts the entries of the "Available Commands:"
// block of a help page. The block ends at the first line that is neither
// blank nor indented. Continuation lines are indented deeper and ignored.
func parseAvailableCommands(help string) ([]commandEntry, bool) {
	lines := strings.Split(help, "\n")
	start := -1
	for i, line := range lines {
		if line == "Available Commands:" {
			start = i + 1
			break
		}
	}
	if start < 0 || start >= len(lines) {
		return nil, false
	}

	var entries []commandEntry
	seen := false
	for _, line := range lines[start:] {
		if line != "" && line[0] != ' ' && line[0] != '\t' {
			break
		}
		if line != "" {
			seen = true
		}
		if !commandLine.MatchString(line) {
			continue
		}
		fields := strings.Fields(line)
		entries = append(entries, commandEntry{
			name:        fields[0],
			description: strings.Join(fields[1:], " "),
		})
	}
	return entries, seen
}

// Describe returns the documentation for service. Service groups get a
// fixed hint; missing or failing documentation yields an empty string.
func (c *Client) Describe(ctx context.Context, service string) string {
	service = strings.Join(strings.Fields(service), " ")
	if c.groups[service] {
		return service + " is a service group. Please specify a service within this group."
	}

	docs, ok := c.run(ctx, "docs", "mcp")
	if !ok {
		return ""
	}
	return extractSection(docs, c.name, strings.Fields(service))
}

// extractSection keeps the documentation sections whose header line
// "<cli> a b c ..." starts with the requested service words.
func extractSection(docs, cliName string, words []string) string {
	var out []string
	capturing := false
	for _, line := range strings.Split(docs, "\n") {
		stripped := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(stripped, cliName+" ") {
			parts := strings.Fields(stripped)
			capturing = len(parts) >= 2 && hasWordPrefix(parts[1:], words)
		}
		if capturing {
			out = append(out, line)
		}
	}
	return strings.TrimRight(strings.Join(out, "\n"), " \t\r\n")
}

func hasWordPrefix(parts, words []string) bool {
	if len(parts) < len(words) {
		return false
	}
	for i, w := range words {
		if parts[i] != w {
			return false
		}
	}
	return true
}
