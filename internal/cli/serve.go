package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/cligate/internal/config"
	gatemcp "github.com/ppiankov/cligate/internal/mcp"
)

var (
	serveTransport    string
	serveAddr         string
	serveSkipCLICheck bool
	serveWatchRules   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "MCP transport (stdio|http, default stdio)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address for the http transport (default 127.0.0.1:8080)")
	serveCmd.Flags().BoolVar(&serveSkipCLICheck, "skip-cli-check", false, "Do not verify the CLI binary before serving")
	serveCmd.Flags().BoolVar(&serveWatchRules, "watch-rules", false, "Reload the rules file when it changes")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: "Runs cligate as an MCP (Model Context Protocol) server over stdio or streamable HTTP.\n" +
		"Exposes tools to list profiles and services, read CLI documentation,\n" +
		"dry-run the command policy and execute allowed commands.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func newServer(cfg *config.Config) (*gatemcp.Server, error) {
	return gatemcp.New(gatemcp.Config{
		CLIName:        cfg.CLI.Name,
		Bin:            cfg.CLI.Bin,
		Mode:           cfg.Mode,
		Timeout:        cfg.TimeoutDuration(),
		RulesPath:      cfg.Rules,
		ServiceGroups:  cfg.ServiceGroups,
		SystemServices: cfg.SystemServices,
		Version:        version,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !serveSkipCLICheck {
		if err := srv.CheckCLI(ctx); err != nil {
			return err
		}
	}

	if serveWatchRules {
		reloader, err := gatemcp.NewReloader(srv)
		if err != nil {
			logrus.WithError(err).Warn("Rules hot-reload disabled")
		} else {
			go func() {
				if err := reloader.Run(ctx); err != nil {
					logrus.WithError(err).Warn("Rules watcher stopped")
				}
			}()
		}
	}

	logrus.WithFields(logrus.Fields{
		"cli":       cfg.CLI.Name,
		"bin":       cfg.CLI.Bin,
		"mode":      cfg.Mode,
		"transport": cfg.Transport,
		"rules":     srv.RulesHash(),
	}).Info("Starting cligate MCP server")

	switch cfg.Transport {
	case config.TransportHTTP:
		err = srv.RunHTTP(ctx, cfg.Addr)
	default:
		err = srv.Run(ctx)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		return nil
	}
	return err
}
