/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configPath string
	logFile    string
	logLevel   string
	dataDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orochi",
	Short: "Command line client for 8tracks",
	Long: `orochi is an interactive command line client for 8tracks.

Search for mixes by keyword, tag or user and play them through an
external player (mplayer or mpd). Type help at the prompt for a list
of commands.

The 8tracks API key is read from ~/.config/orochi/config.yaml (api_key)
or the OROCHI_API_KEY environment variable.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
	RunE:         runShell,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/orochi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: <data-dir>/debug.log)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory for history and logs (default: ~/.local/share/orochi)")
}
