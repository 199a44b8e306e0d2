package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/helper"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
	fromEnv   bool   // true when val was read from the environment
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"config": cliFlag{name: "config", shortHand: "c",
		desc: "Path to the pipeline config file (.yaml)"},
	"tables": cliFlag{name: "tables", shortHand: "t",
		desc: "CSV of configured table names to sync; leave blank to sync all of them"},
	"parallel": cliFlag{name: "parallel", shortHand: "p",
		desc: "Number of tables to sync concurrently (overrides the config when > 0)"},
	"dry-run": cliFlag{name: "dry-run", shortHand: "d",
		desc: "Print the extraction plan per table without copying any data"},
	"full": cliFlag{name: "full", shortHand: "f",
		desc: "Force a full resync of the selected tables, replacing target rows, \n" +
			"regardless of each table's configured strategy"},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Output format: \"yaml\" or \"json\" for dry-run plans;\n" +
			"\"table\", \"json\" or \"summary\" for status (default chosen by terminal)"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"cleanup-days": cliFlag{name: "cleanup-days", shortHand: "D",
		desc: "Metrics retention in days; rows older than this are removed after the \n" +
			"run (overrides the config when > 0)"},
	"addr": cliFlag{name: "addr", shortHand: "a",
		desc: "Address to listen on"},
	"port": cliFlag{name: "port", shortHand: "P",
		desc: "Port to listen on"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// The default value comes from the matching PMSYNC_* environment variable when set,
// else the supplied defaultValue is applied.
// The flag is marked as required in Cobra based on the value of required.
// Supply a value for desc2 to append to the existing description found in map cliFlags.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue) // get the cliFlag details, with defaults taken from the environment or the supplied defaultValue
	desc := sw.desc + desc2                // create the full flag description for use below
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
		if sw.fromEnv { // if the environment supplied a value...
			// Signal that the flag was set so required flags are satisfied.
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	case *bool:
		defaultBool := strings.ToLower(sw.val) == "true"
		c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, desc)
		if sw.fromEnv {
			mustSetFlag(c.Flags(), sw.name, strconv.FormatBool(defaultBool))
		}
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
		if sw.fromEnv {
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	if required { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment,
// falling back to the supplied defaultValue.
func (f *cliFlags) getCliFlag(name string, defaultValue string) cliFlag {
	s, ok := switches[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	if v := helper.ReadValueFromEnvWithDefault(flagNameToEnvVar(name), ""); v != "" { // if the env var is set...
		s.val = v
		s.fromEnv = true
	} else {
		s.val = defaultValue
	}
	return s
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// flagNameToEnvVar will form a sanitised environment variable name using constants.EnvVarPrefix.
func flagNameToEnvVar(name string) string {
	return constants.EnvVarPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
