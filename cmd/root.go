// Package cmd contains all CLI commands for storefront
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"storefront/app"
	"storefront/config"
	applog "storefront/logger"
	"storefront/output"
)

var (
	cfgFile string
	envFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront session and checkout client",
	Long: `storefront signs in to the shop backend, keeps a local cart and walks
through checkout up to the payment gateway.

Example usage:
  storefront login                 # Sign in with a phone number
  storefront cart add 12           # Put product 12 in the cart
  storefront checkout addresses    # List shipping addresses
  storefront checkout order -a 3   # Order the cart and print the payment link
  storefront serve                 # Run the local storefront API`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return output.ExitSuccess
	}

	colors := false
	if cfg != nil {
		colors = cfg.Output.Colors
	}
	cliErr := output.Describe(err)
	output.NewPrinterWithWriters(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), output.ResolveColors(colors)).FormatError(cliErr)
	return cliErr.ExitCode
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .storefront.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error

	cfg, err = config.Load(cfgFile, envFile)
	if err != nil {
		return &output.CLIError{
			Summary:    "Could not load configuration.",
			Detail:     err.Error(),
			Suggestion: "Check .storefront.yaml and the STOREFRONT_* environment variables.",
			ExitCode:   output.ExitConfigError,
		}
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger = applog.Init(level, cfg.Logging.Format)

	logger.Debug("configuration loaded",
		"backend", cfg.Backend.BaseURL,
		"store", cfg.Store.Driver,
		"identity", cfg.Identity.Provider,
	)
	return nil
}

// newPrinter returns a printer on the command's writers.
func newPrinter(cmd *cobra.Command) *output.Printer {
	return output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors(cfg.Output.Colors))
}

// openApp wires the core and restores the persisted session and cart.
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("starting storefront: %w", err)
	}
	return a, nil
}
