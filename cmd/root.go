// Package cmd provides the iochunt command-line interface.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"iochunt/bootstrap"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

const (
	maxImportFileSize = 10 * 1024 * 1024 // 10MB
	defaultTimeout    = 5 * time.Minute
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	configFile string
	outputJSON bool
	noColor    bool
	quiet      bool
}

// NewRootCmd creates the iochunt command with all subcommands. Without a
// subcommand it runs the service.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "iochunt",
		Short: "IOC classification and threat-hunt engine",
		Long: `iochunt classifies indicators of compromise, stores them per organization and
hunts for them across endpoint file inventory and endpoint logs.

Run without a subcommand to start the HTTP service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor || g.outputJSON {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&g.outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&g.quiet, "quiet", false, "Suppress non-essential output")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newClassifyCmd(g))
	root.AddCommand(newIndicatorsCmd(g))
	root.AddCommand(newHuntCmd(g))
	root.AddCommand(newSearchCmd(g))
	root.AddCommand(newSeedCmd(g))

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// cliLogger keeps service logs off stdout, which belongs to command output
func cliLogger(quiet bool) *zap.Logger {
	if quiet {
		return zap.NewNop()
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stderr), zapcore.WarnLevel)
	return zap.New(core)
}

// openApp initializes storage and the hunt engine without starting the API server
func openApp(ctx context.Context, g *globalFlags) (*bootstrap.App, func(), error) {
	app, err := bootstrap.NewApp(ctx, g.configFile, bootstrap.WithLogger(cliLogger(g.quiet)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, app.Shutdown, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, defaultTimeout)
}

func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// requireOrg rejects a blank --org
func requireOrg(org string) (string, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return "", fmt.Errorf("--org is required")
	}
	return org, nil
}
