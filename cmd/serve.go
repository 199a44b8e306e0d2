package cmd

import (
	"github.com/spf13/cobra"
	"github.com/dentametrics/pmsync/actions"
	"github.com/dentametrics/pmsync/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service exposing sync state via a RESTful API",
	Long:  `Start a web service exposing sync state via a RESTful API`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveConfig)
	},
}

var serveConfig = actions.WebServerConfig{}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	switches.addFlag(serveCmd, &serveConfig.ConfigFile, "config", config.DefaultConfigPath(), false, "")
	switches.addFlag(serveCmd, &serveConfig.Addr, "addr", "0.0.0.0", false, "")
	switches.addFlag(serveCmd, &serveConfig.Port, "port", "8080", false, "")
	switches.addFlag(serveCmd, &serveConfig.LogLevel, "log-level", "info", false, "")
}
