package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/helper"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/syncstate"
)

type StatusConfig struct {
	ConfigFile       string `errorTxt:"config file" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
	Output           string // table, json or summary; blank picks by terminal
}

// ShowStatus prints the tracking table. Interactive sessions get an aligned
// table, pipes get JSON.
func ShowStatus(cfg *StatusConfig) error {
	log := logger.NewLogger("pmsync", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	conf, err := config.NewFromFile(log, cfg.ConfigFile, config.EnvProvider{})
	if err != nil {
		return err
	}
	target, err := rdbms.OpenDbConnection(log, conf.Target)
	if err != nil {
		return errors.Wrap(err, "error connecting to target")
	}
	defer target.Close()

	tracker := syncstate.NewTracker(log, target, conf.TargetSchema)
	rows, err := tracker.Status(context.Background())
	if err != nil {
		return err
	}

	output := cfg.Output
	if output == "" {
		if isatty.IsTerminal(os.Stdout.Fd()) { // if a human is watching...
			output = "table"
		} else {
			output = "json"
		}
	}
	switch output {
	case "json":
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TABLE\tSTATUS\tLAST SYNC\tCURSOR\tROWS\tERROR")
		for _, r := range rows {
			lastSync := ""
			if !r.LastSyncTime.IsZero() {
				lastSync = r.LastSyncTime.Format(constants.TimeFormatDb)
			}
			_, _ = fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
				r.TableName, r.SyncStatus, lastSync,
				r.LastModified.Format(constants.TimeFormatDb), r.RowsSynced, r.ErrorMessage)
		}
		_ = w.Flush()
	case "summary":
		byStatus := make(map[string]int)
		for _, r := range rows {
			byStatus[r.SyncStatus]++
		}
		fmt.Printf("%v tables: %v success, %v failed, %v running, %v pending\n",
			len(rows), byStatus[syncstate.StatusSuccess], byStatus[syncstate.StatusFailed],
			byStatus[syncstate.StatusRunning], byStatus[syncstate.StatusPending])
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
	return nil
}
