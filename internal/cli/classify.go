package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/model"
)

var classifyFormat string

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVarP(&classifyFormat, "format", "f", "text", "Output format (text|json)")
}

var classifyCmd = &cobra.Command{
	Use:   "classify [flags] -- <cli> [args...]",
	Short: "Show how each token of a command is classified",
	Long: "Prints the class of every token (credential, mutating, neutral), the rule\n" +
		"that matched it, and the resulting decision in the configured safe mode.\n" +
		"Nothing is executed.",
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

type classifyReport struct {
	Command  string                      `json:"command"`
	Mode     model.SafetyMode            `json:"mode"`
	Decision model.PolicyDecision        `json:"decision"`
	Message  string                      `json:"message,omitempty"`
	Tokens   []model.TokenClassification `json:"tokens"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	tokens, err := tokensFromArgs(appConfig.CLI.Name, args)
	if err != nil {
		return err
	}
	gate, err := newGate()
	if err != nil {
		return fmt.Errorf("failed to create gate: %w", err)
	}

	decision := gate.Check(tokens)
	report := classifyReport{
		Command:  cmdguard.FormatCommand(appConfig.CLI.Name, gate.Redact(tokens)),
		Mode:     gate.Mode(),
		Decision: decision,
		Message:  cmdguard.DenialMessage(decision),
		Tokens:   gate.Explain(tokens),
	}

	if classifyFormat == "json" {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	return writeClassifyText(cmd.OutOrStdout(), report)
}

func writeClassifyText(w io.Writer, r classifyReport) error {
	fmt.Fprintf(w, "Command: %s\nMode:    %s\n\n", r.Command, r.Mode)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tCLASS\tRULE")
	for _, c := range r.Tokens {
		pattern := c.Pattern
		if pattern == "" {
			pattern = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Token, c.Class, pattern)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nDecision: %s\n", r.Decision)
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	return nil
}
