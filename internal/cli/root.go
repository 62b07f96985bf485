package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/cligate/internal/config"
)

var (
	rootConfigFile string
	rootEnvFile    string
	rootSafeMode   string
	rootRules      string
	rootCLIBin     string
	rootLogLevel   string

	// appConfig is resolved once in PersistentPreRunE and read-only after.
	appConfig *config.Config
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootConfigFile, "config", "", "Path to config YAML (default: ~/.cligate/config.yaml if present)")
	f.StringVar(&rootEnvFile, "env-file", "", "Path to dotenv file (default: .env if present)")
	f.StringVar(&rootSafeMode, "safe-mode", "", "Refuse mutating commands (true|false, default true)")
	f.StringVar(&rootRules, "rules", "", "Path to rules YAML (default: ~/.cligate/rules.yaml if present)")
	f.StringVar(&rootCLIBin, "cli-bin", "", "Path to the CLI binary")
	f.StringVar(&rootLogLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:   "cligate",
	Short: "Policy-gated MCP server for cloud CLIs",
	Long: "Exposes a cloud CLI (nebius by default) to AI agents over MCP.\n" +
		"Every command is checked before it runs: credential-bearing commands are never executed,\n" +
		"and in safe mode commands that change resources are refused.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			var cfgErr *config.ConfigError
			if errors.As(err, &cfgErr) {
				fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
				os.Exit(78) // EX_CONFIG
			}
			return err
		}
		if err := setupLogging(cfg.Log.Level); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

// loadConfig resolves configuration with persistent flags bound over the
// file and environment.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	bind := map[string]*pflag.Flag{}
	for key, name := range map[string]string{
		"safe_mode": "safe-mode",
		"rules":     "rules",
		"cli.bin":   "cli-bin",
		"log.level": "log-level",
		"transport": "transport",
		"addr":      "addr",
	} {
		if fl := flags.Lookup(name); fl != nil {
			bind[key] = fl
		}
	}
	return config.Load(config.Options{
		File:    rootConfigFile,
		EnvFile: rootEnvFile,
		Flags:   bind,
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
