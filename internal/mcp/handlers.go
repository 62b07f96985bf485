package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/cligate/internal/clidocs"
	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/model"
)

// --- Input/Output types ---

// ExecuteInput defines parameters for the execute tool. Exactly one of
// Command or Args is used; Args wins when both are set.
type ExecuteInput struct {
	Command string   `json:"command,omitempty" jsonschema:"complete CLI command to execute, starting with the CLI name"`
	Args    []string `json:"args,omitempty" jsonschema:"pre-split command arguments, without the CLI name"`
}

// ExecuteOutput contains the command output or the refusal.
type ExecuteOutput struct {
	Status   string `json:"status"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CheckInput defines parameters for the check tool.
type CheckInput struct {
	Command string   `json:"command,omitempty" jsonschema:"complete CLI command to check, starting with the CLI name"`
	Args    []string `json:"args,omitempty" jsonschema:"pre-split command arguments, without the CLI name"`
}

// CheckOutput contains the policy decision and per-token classes.
type CheckOutput struct {
	Allowed bool                        `json:"allowed"`
	Mode    string                      `json:"mode"`
	Reason  string                      `json:"reason,omitempty"`
	Message string                      `json:"message,omitempty"`
	Tokens  []model.TokenClassification `json:"tokens"`
}

// HelpInput defines parameters for the help tool.
type HelpInput struct {
	Service string `json:"service" jsonschema:"CLI service (e.g. applications, compute, iam project, msp mlflow)"`
}

// HelpOutput contains service documentation.
type HelpOutput struct {
	HelpText string `json:"help_text"`
}

// ServicesInput defines parameters for the services tool.
type ServicesInput struct {
	ServiceGroup string `json:"service_group,omitempty" jsonschema:"service group (e.g. iam, msp)"`
}

// ProfilesInput is empty: no parameters needed.
type ProfilesInput struct{}

// ProfilesOutput lists configured profiles by name.
type ProfilesOutput struct {
	Profiles map[string]clidocs.Profile `json:"profiles"`
}

// --- Handlers ---

// tokens resolves tool input into command tokens.
func (s *Server) tokens(command string, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return cmdguard.ParseCommand(s.cliName, command)
}

func (s *Server) handleExecute(ctx context.Context, req *mcpsdk.CallToolRequest, input ExecuteInput) (*mcpsdk.CallToolResult, ExecuteOutput, error) {
	tokens, err := s.tokens(input.Command, input.Args)
	if err != nil {
		logrus.WithError(err).Warn("Rejected command")
		return nil, ExecuteOutput{}, err
	}

	gate := s.Gate()
	log := logrus.WithField("command", cmdguard.FormatCommand(s.cliName, gate.Redact(tokens)))
	log.Info("Executing command")

	result, err := gate.Run(ctx, tokens)
	if err != nil {
		var execErr *cmdguard.ExecutionError
		if errors.As(err, &execErr) {
			log.WithError(err).Warn("Command execution error")
			return nil, ExecuteOutput{}, fmt.Errorf("command execution error: %w", err)
		}
		return nil, ExecuteOutput{}, err
	}

	if result.Denied() {
		log.WithField("reason", result.Reason).Warn("Command denied")
		out := ExecuteOutput{
			Status:  result.Status,
			Reason:  string(result.Reason),
			Message: result.Message,
		}
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	if result.ExitCode != 0 {
		log.WithField("exit_code", result.ExitCode).Warn("Command failed")
	}
	return nil, ExecuteOutput{
		Status:   result.Status,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}, nil
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	tokens, err := s.tokens(input.Command, input.Args)
	if err != nil {
		return nil, CheckOutput{}, err
	}

	gate := s.Gate()
	decision := gate.Check(tokens)
	out := CheckOutput{
		Allowed: decision.Allowed,
		Mode:    string(gate.Mode()),
		Tokens:  gate.Explain(tokens),
	}
	if !decision.Allowed {
		out.Reason = string(decision.Reason)
		out.Message = cmdguard.DenialMessage(decision)
	}
	return nil, out, nil
}

func (s *Server) handleHelp(ctx context.Context, req *mcpsdk.CallToolRequest, input HelpInput) (*mcpsdk.CallToolResult, HelpOutput, error) {
	service := strings.TrimSpace(input.Service)
	if service == "" {
		return nil, HelpOutput{}, errors.New("service is required")
	}
	logrus.WithField("service", service).Infof("Fetching help for %s %s", s.cliName, service)
	return nil, HelpOutput{HelpText: s.docs.Describe(ctx, service)}, nil
}

// handleServices returns the service tree as JSON text content. The tree is
// recursive, so no output schema is declared for it.
func (s *Server) handleServices(ctx context.Context, req *mcpsdk.CallToolRequest, input ServicesInput) (*mcpsdk.CallToolResult, any, error) {
	services := s.docs.Services(ctx, strings.TrimSpace(input.ServiceGroup))
	data, err := json.Marshal(services)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode services: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) handleProfiles(ctx context.Context, req *mcpsdk.CallToolRequest, input ProfilesInput) (*mcpsdk.CallToolResult, ProfilesOutput, error) {
	return nil, ProfilesOutput{Profiles: s.docs.Profiles(ctx)}, nil
}
