package actions

import (
	"fmt"
	"time"

	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/helper"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

type TestConnectionsConfig struct {
	ConfigFile       string `errorTxt:"config file" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
}

// TestConnections opens the source and target connections and reports how long
// each took. Opening a connection pings it, so success here means credentials
// and reachability are good.
func TestConnections(cfg *TestConnectionsConfig) error {
	log := logger.NewLogger("pmsync", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	conf, err := config.NewFromFile(log, cfg.ConfigFile, config.EnvProvider{})
	if err != nil {
		return err
	}
	failures := 0
	for _, role := range []string{"source", "target"} {
		elapsed, err := testConnection(log, conf, role)
		if err != nil {
			fmt.Printf("%v: FAILED (%v)\n", role, err)
			failures++
			continue
		}
		fmt.Printf("%v: ok (%.0fms)\n", role, elapsed.Seconds()*1000)
	}
	if failures > 0 {
		return fmt.Errorf("%v connection(s) failed", failures)
	}
	return nil
}

// testConnection opens and closes the connection for one role, timing the
// round trip. Opening pings the database.
func testConnection(log logger.Logger, loader ConnectionLoader, role string) (time.Duration, error) {
	c, err := loader.LoadConnection(role)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	err = rdbms.WithConnection(log, c, func(db shared.Connector) error { return nil })
	return time.Since(start), err
}
