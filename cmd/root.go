package cmd

import (
	"github.com/spf13/cobra"
	"github.com/yeti47/securitycam/cmd/alarm"
	"github.com/yeti47/securitycam/cmd/run"
)

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "securitycam",
		Short:         "Surveillance camera with person detection, snapshots, recording and alarms",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the JSON configuration file (default ~/securitycam/config.json)")

	rootCmd.AddCommand(
		run.Command(&configPath),
		alarm.Command(&configPath),
	)

	return rootCmd
}
