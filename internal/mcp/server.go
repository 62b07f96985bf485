package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/cligate/internal/clidocs"
	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/model"
	"github.com/ppiankov/cligate/internal/policy"
	"github.com/ppiankov/cligate/internal/rules"
)

// Config holds MCP server configuration.
type Config struct {
	CLIName        string
	Bin            string
	Mode           model.SafetyMode
	Timeout        time.Duration
	RulesPath      string
	ServiceGroups  []string
	SystemServices []string
	Version        string
	// Runner overrides the subprocess runner. Nil means an ExecRunner
	// with Timeout.
	Runner cmdguard.Runner
}

// Server wraps the MCP SDK server with command policy enforcement.
type Server struct {
	mcpServer *mcpsdk.Server
	gate      atomic.Pointer[cmdguard.Gate]
	rulesHash atomic.Value // string
	docs      *clidocs.Client
	runner    cmdguard.Runner
	cliName   string
	bin       string
	mode      model.SafetyMode
	rulesPath string
	prefix    string
}

// New creates an MCP server with loaded rules and tools.
func New(cfg Config) (*Server, error) {
	if cfg.CLIName == "" {
		return nil, errors.New("CLI name is required")
	}
	if cfg.Bin == "" {
		return nil, errors.New("CLI binary path is required")
	}

	runner := cfg.Runner
	if runner == nil {
		runner = cmdguard.NewExecRunner(cfg.Timeout)
	}

	s := &Server{
		docs: clidocs.New(runner, clidocs.Options{
			Name:           cfg.CLIName,
			Bin:            cfg.Bin,
			ServiceGroups:  cfg.ServiceGroups,
			SystemServices: cfg.SystemServices,
		}),
		runner:    runner,
		cliName:   cfg.CLIName,
		bin:       cfg.Bin,
		mode:      cfg.Mode,
		rulesPath: cfg.RulesPath,
		prefix:    ToolPrefix(cfg.CLIName),
	}
	if err := s.ReloadRules(); err != nil {
		return nil, err
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "cligate",
			Title:   fmt.Sprintf("%s CLI behind a command policy gate", cfg.CLIName),
			Version: version,
		},
		&mcpsdk.ServerOptions{
			Instructions: Instructions(cfg.CLIName),
		},
	)

	s.registerTools()
	return s, nil
}

// ToolPrefix derives the tool name prefix from a CLI name: lower-cased,
// with anything outside [a-z0-9] replaced by an underscore.
func ToolPrefix(cliName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(cliName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Tool name suffixes.
const (
	toolExecute  = "_cli_execute"
	toolCheck    = "_cli_check"
	toolHelp     = "_cli_help"
	toolServices = "_available_services"
	toolProfiles = "_profiles"
)

// ToolNames returns the names of all registered tools.
func (s *Server) ToolNames() []string {
	return []string{
		s.prefix + toolProfiles,
		s.prefix + toolServices,
		s.prefix + toolHelp,
		s.prefix + toolCheck,
		s.prefix + toolExecute,
	}
}

// Instructions returns the server instructions shown to the agent.
func Instructions(cliName string) string {
	p := ToolPrefix(cliName)
	return fmt.Sprintf(`This server provides an interface to the %[1]s CLI with guidance.
Don't rely on existing knowledge about the %[1]s services.
Always run the %[2]s_cli_help tool to get documentation for the service specified by the user before generating a command to execute.
- Use the %[2]s_profiles tool to get the available CLI profiles
- Use the %[2]s_available_services tool to get all available services
- Use the %[2]s_available_services tool with the service_group parameter to get the services in a service group
- Use the %[2]s_cli_help tool to get CLI documentation for a service. Never call this tool with a service group name
- Use the %[2]s_cli_check tool to find out whether a command would be allowed without running it
- Use the %[2]s_cli_execute tool to run a %[1]s CLI command based on the documentation and return its output
Commands are executed directly, never through a shell: pipes, redirections and substitutions are rejected.
Commands that reveal credentials are never executed. When safe mode is enabled, commands that change resources are refused; provide manual instructions instead.
`, cliName, p)
}

// ReloadRules loads the rules file and replaces the gate. Calls already
// in flight keep the gate they started with.
func (s *Server) ReloadRules() error {
	compiled, hash, err := rules.LoadWithHash(s.rulesPath)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	evaluator := policy.NewEvaluator(policy.NewClassifier(compiled), s.mode)
	s.gate.Store(cmdguard.NewGate(evaluator, s.runner, s.bin))
	s.rulesHash.Store(hash)
	return nil
}

// Gate returns the current execution gate.
func (s *Server) Gate() *cmdguard.Gate {
	return s.gate.Load()
}

// RulesHash returns the hash of the loaded rules file.
func (s *Server) RulesHash() string {
	h, _ := s.rulesHash.Load().(string)
	return h
}

// RulesPath returns the rules file in use; empty means the default path.
func (s *Server) RulesPath() string {
	if s.rulesPath == "" {
		return rules.DefaultPath()
	}
	return s.rulesPath
}

// CheckCLI verifies that the CLI binary runs.
func (s *Server) CheckCLI(ctx context.Context) error {
	logrus.WithField("bin", s.bin).Infof("Checking %s CLI installation", s.cliName)
	if !s.docs.Installed(ctx) {
		return fmt.Errorf("%s CLI is not installed at %s: install it or set cli.bin", s.cliName, s.bin)
	}
	logrus.Infof("%s CLI is installed and available", s.cliName)
	return nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Handler returns an http.Handler serving the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcpServer
	}, nil)
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logrus.WithField("addr", addr).Info("Serving MCP over streamable HTTP")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// Tools lists the registered tools by connecting an in-memory client.
func (s *Server) Tools(ctx context.Context) ([]*mcpsdk.Tool, error) {
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, err
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "cligate-tools"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, err
	}
	res, err := clientSession.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	if err := clientSession.Close(); err != nil {
		return nil, err
	}
	if err := serverSession.Wait(); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// registerTools adds all tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        s.prefix + toolProfiles,
		Description: fmt.Sprintf("Get the available %s CLI profiles. The active profile has is_active set.", s.cliName),
	}, s.handleProfiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: s.prefix + toolServices,
		Description: fmt.Sprintf("Get the available %s services and service groups. "+
			"If service_group is specified, returns the services in that group.", s.cliName),
	}, s.handleServices)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        s.prefix + toolHelp,
		Description: fmt.Sprintf("Get the %s CLI command documentation for the specified service.", s.cliName),
	}, s.handleHelp)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        s.prefix + toolCheck,
		Description: "Check whether a command would be allowed by the command policy without executing it (dry-run).",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: s.prefix + toolExecute,
		Description: fmt.Sprintf(`Execute a %[1]s CLI command through the command policy gate.

Examples:
- %[1]s storage bucket list --parent-id project-e00...
- %[1]s compute instance list --parent-id project-e00...

Always run the %[2]s_cli_help tool for the service before generating the command.
Do not pass --profile unless the user explicitly named a profile; check it exists with %[2]s_profiles.
Never pass --parent-id unless the user explicitly gave its value.
Denied commands return status "denied" with the reason; do not retry them, provide manual instructions instead.`, s.cliName, s.prefix),
	}, s.handleExecute)
}
