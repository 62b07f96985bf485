package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/policy"
	"github.com/ppiankov/cligate/internal/rules"
)

// exitBlocked is the exit status for a command refused by policy.
const exitBlocked = 77

var execDryRun bool

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Check policy without executing")
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <cli> [args...]",
	Short: "Execute a CLI command through the command policy",
	Long: "Evaluates the command against the rules and safe mode before execution.\n" +
		"The command may be given as separate arguments or as one quoted string.\n" +
		"Blocked commands are not executed. Exit code 77 indicates policy block.",
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

// tokensFromArgs turns command-line arguments into command tokens. A single
// argument is parsed as a command line; otherwise the first argument must
// be the CLI name.
func tokensFromArgs(cliName string, args []string) ([]string, error) {
	if len(args) == 1 {
		return cmdguard.ParseCommand(cliName, args[0])
	}
	if args[0] != cliName {
		return nil, fmt.Errorf("%w: command must start with %s", cmdguard.ErrWrongProgram, cliName)
	}
	return args[1:], nil
}

func newGate() (*cmdguard.Gate, error) {
	cfg := appConfig
	compiled, err := rules.Load(cfg.Rules)
	if err != nil {
		return nil, err
	}
	evaluator := policy.NewEvaluator(policy.NewClassifier(compiled), cfg.Mode)
	return cmdguard.NewGate(evaluator, cmdguard.NewExecRunner(cfg.TimeoutDuration()), cfg.CLI.Bin), nil
}

func runExec(cmd *cobra.Command, args []string) error {
	tokens, err := tokensFromArgs(appConfig.CLI.Name, args)
	if err != nil {
		return err
	}

	gate, err := newGate()
	if err != nil {
		return fmt.Errorf("failed to create gate: %w", err)
	}

	// Dry-run mode: check policy only
	if execDryRun {
		decision := gate.Check(tokens)
		out, _ := json.MarshalIndent(decision, "", "  ")
		fmt.Println(string(out))
		if !decision.Allowed {
			os.Exit(exitBlocked)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := gate.Run(ctx, tokens)
	if err != nil {
		var execErr *cmdguard.ExecutionError
		if errors.As(err, &execErr) {
			return fmt.Errorf("command execution error: %w", err)
		}
		return err
	}

	if result.Denied() {
		resp := map[string]any{
			"status":  result.Status,
			"command": cmdguard.FormatCommand(appConfig.CLI.Name, gate.Redact(tokens)),
			"reason":  string(result.Reason),
			"message": result.Message,
		}
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(os.Stderr, string(out))
		os.Exit(exitBlocked)
	}

	// Print command output
	fmt.Print(result.Stdout)
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}

	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}
