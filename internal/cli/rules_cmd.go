package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/cligate/internal/rules"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rule table",
	Long: "Prints the rule table in effect (built-in defaults merged with the rules file)\n" +
		"as YAML, preceded by the hash of the rules file.",
	Args: cobra.NoArgs,
	RunE: runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	compiled, hash, err := rules.LoadWithHash(appConfig.Rules)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(compiled.Table())
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "# rules hash: %s\n", hash)
	fmt.Fprintf(w, "# credential rules: %d, mutating rules: %d\n", compiled.Credential.Len(), compiled.Mutating.Len())
	_, err = w.Write(out)
	return err
}
