package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/config"
)

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chat-recorder",
	Short: "Record and query chat messages across bot adapters",
	Long: `Record the messages your bots receive and send, across chat adapters,
into one relational store, and query them back.

Bot hosts capture notifications as JSONL (one event or completed API call per
line). chat-recorder replays those files, or watches a spool directory for new
ones, and stores every message with the session it belongs to.

Quick Start:
  chat-recorder ingest events.jsonl                  # Record a capture
  chat-recorder ingest --watch ./spool               # Record as files arrive
  chat-recorder records --adapter "OneBot V11"       # Browse records
  chat-recorder export --view plain --scene-id G1    # Dump plain texts

Configuration is read from chatrecorder.yaml, .env and CHATRECORDER_* variables.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Verbose = true
		}
		cfg = loaded
		internal.SetLogLevel(cfg.LogLevelValue())
		if cfg.Path != "" {
			internal.LogDebug("loaded config from %s", cfg.Path)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./"+config.DefaultFile+" when present)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
