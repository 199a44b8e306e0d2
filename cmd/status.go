package cmd

import (
	"github.com/spf13/cobra"
	"github.com/dentametrics/pmsync/actions"
	"github.com/dentametrics/pmsync/config"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-table sync state from the warehouse tracking table",
	Long: `Show per-table sync state from the warehouse tracking table.
Interactive sessions get an aligned table; pipes get JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.ShowStatus(&statusConfig)
	},
}

var statusConfig = actions.StatusConfig{}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().SortFlags = false
	switches.addFlag(statusCmd, &statusConfig.ConfigFile, "config", config.DefaultConfigPath(), false, "")
	switches.addFlag(statusCmd, &statusConfig.Output, "output", "", false, "")
	switches.addFlag(statusCmd, &statusConfig.LogLevel, "log-level", "warn", false, "")
}
