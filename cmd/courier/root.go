package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - CSV export engine for orders and customers",
	Long: `Courier builds CSV exports of orders and customers from configurable
column formats.

Exports run as resumable background jobs that write their file in chunks.
Finished files can be downloaded or delivered by email, HTTP POST, FTP,
FTPS or SFTP. Auto exports pick up new records on a schedule.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}
