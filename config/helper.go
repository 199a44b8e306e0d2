package config

import (
	"fmt"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
	"github.com/dentametrics/pmsync/constants"
)

var pmsyncHomeDir string

// mustGetConfigHomeDir returns the full path to the home directory that stores all config files.
// Uses global variable.
func mustGetConfigHomeDir() string {
	if pmsyncHomeDir == "" {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		pmsyncHomeDir = path.Join(home, constants.MainDir)
	}
	return pmsyncHomeDir
}

// DefaultConfigPath returns the path used when --config is not supplied,
// ~/.pmsync/config.yaml.
func DefaultConfigPath() string {
	return path.Join(mustGetConfigHomeDir(), constants.MainFileFullName)
}

// MakeConfigHomeDir creates ~/.pmsync if it does not already exist.
func MakeConfigHomeDir() error {
	dir := mustGetConfigHomeDir()
	_, err := os.Stat(dir)
	if os.IsNotExist(err) { // if it doesn't exist...
		if err = os.Mkdir(dir, 0755); err != nil { // if the dir was NOT created...
			return fmt.Errorf("error creating directory %v", dir)
		}
		return nil
	}
	return err
}
