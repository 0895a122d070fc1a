package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/config"
	"github.com/mmynk/pollchat/pkg/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Terminal client for pollchat",
	Long: `chat talks to a path-addressed JSON document store. Conversations are
polled once per interval; sends and group changes are written straight to the store.`,
	Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().String("store", "", "document store URL, or \"memory\" for an in-process store")
	rootCmd.PersistentFlags().StringP("user", "u", "", "local user email")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	if store, _ := cmd.Flags().GetString("store"); store != "" {
		c.Client.StoreURL = store
	}
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		c.Client.User = user
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		c.Logging.Format = format
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		c.Logging.Level = "debug"
	}

	opts := logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}
	if opts.Level == "info" {
		// The terminal is for the timeline; only surface problems unless asked.
		opts.Level = "warn"
	}
	logging.Configure(opts)
	slog.Debug("Config loaded", "store_url", c.Client.StoreURL, "user", c.Client.User)

	cfg = c
	return nil
}
