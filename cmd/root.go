package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/logging"
)

var (
	appConfig *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "wallet-swap",
	Short: "Swap between your wallet accounts using NEAR Intents 1Click quotes",
	Long: `wallet-swap is a command-line wallet companion that swaps funds between
your own accounts. It picks eligible accounts, keeps a live quote from the
NEAR Intents 1Click API, expires stale quotes and hands a locked quote over
to a confirmation step that issues the deposit address.

Examples:
  wallet-swap accounts add --currency bitcoin --id btc-1 --address bc1q... --balance 0.2
  wallet-swap swap
  wallet-swap swap 0.05 BTC to USDC on eth
  wallet-swap currencies
  wallet-swap status <deposit-address>`,
	Version:           "0.1.0",
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// setup loads the configuration and installs the application logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	opts := logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if verbose {
		opts.Level = "debug"
	}

	l, closer, err := logging.Setup("wallet-swap", opts, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	appConfig = cfg
	logger = l.With("command", cmd.Name())
	logCloser = closer
	return nil
}

func printError(err error) {
	fmt.Printf("\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}
