package cmd

import (
	"github.com/spf13/cobra"
	"github.com/dentametrics/pmsync/actions"
	"github.com/dentametrics/pmsync/config"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Open the source and target connections and report how long each took",
	Long: `Open the source and target connections and report how long each took.
Opening a connection pings it, so success means credentials and reachability
are good.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		testConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.TestConnections(&testConfig)
	},
}

var testConfig = actions.TestConnectionsConfig{}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().SortFlags = false
	switches.addFlag(testCmd, &testConfig.ConfigFile, "config", config.DefaultConfigPath(), false, "")
	switches.addFlag(testCmd, &testConfig.LogLevel, "log-level", "warn", false, "")
}
