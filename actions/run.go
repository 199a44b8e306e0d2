package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/engine"
	"github.com/dentametrics/pmsync/helper"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/metrics"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/syncstate"
)

type RunConfig struct {
	ConfigFile       string `errorTxt:"config file" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
	TablesCsv        string // optional CSV of table names to sync; blank means all configured tables
	ForceFull        bool   // force a destructive full resync regardless of each table's strategy
	Parallel         int    // overrides the config when > 0
	DryRun           bool
	ExportFormat     string // yaml or json for the dry-run plan
	CleanupDays      int    // overrides the config metrics retention when > 0
}

// RunPipeline syncs the configured tables once. Each table is isolated: a
// failure is recorded and the run moves on, with the process exit status
// reflecting any failures at the end.
func RunPipeline(cfg *RunConfig) error {
	log := logger.NewLogger("pmsync", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	conf, err := config.NewFromFile(log, cfg.ConfigFile, config.EnvProvider{})
	if err != nil {
		return err
	}
	tables, err := filterTables(conf, cfg.TablesCsv)
	if err != nil {
		return err
	}
	if cfg.ForceFull { // if the operator asked for a full resync...
		for i := range tables {
			tables[i].Strategy = constants.SyncStrategyFull
		}
	}
	parallel := conf.Copier.Parallel
	if cfg.Parallel > 0 {
		parallel = cfg.Parallel
	}

	ctx := context.Background()
	source, err := rdbms.OpenDbConnection(log, conf.Source)
	if err != nil {
		return errors.Wrap(err, "error connecting to source")
	}
	defer source.Close()
	target, err := rdbms.OpenDbConnection(log, conf.Target)
	if err != nil {
		return errors.Wrap(err, "error connecting to target")
	}
	defer target.Close()

	tracker := syncstate.NewTracker(log, target, conf.TargetSchema)
	if err = tracker.EnsureTrackingTable(ctx); err != nil {
		return err
	}
	collector := metrics.NewCollector(log, target, conf.TargetSchema)
	if err = collector.EnsureMetricsTables(ctx); err != nil {
		return err
	}
	eng := engine.New(log, conf, source, target, tracker, collector)

	if cfg.DryRun { // if we only want to see what a run would do...
		return exportPlans(ctx, eng, tables, cfg.ExportFormat)
	}

	names := make([]string, len(tables))
	for i := range tables {
		names[i] = tables[i].Name
	}
	if err = tracker.SeedTables(ctx, names); err != nil {
		return err
	}

	runId := collector.StartRun(conf.Environment)
	runTables(ctx, eng, tables, parallel)
	stats := collector.EndRun()
	if !collector.Save(ctx) {
		log.Warn("metrics for run ", runId, " were not saved")
	}
	retention := conf.Metrics.RetentionDays
	if cfg.CleanupDays > 0 {
		retention = cfg.CleanupDays
	}
	if !collector.Cleanup(ctx, retention) {
		log.Warn("old metrics were not cleaned up")
	}

	log.Info("run ", runId, " finished ", stats.Status, ": ", stats.TablesProcessed, " tables, ",
		stats.RowsWritten, " rows, ", stats.TablesFailed, " failures in ",
		fmt.Sprintf("%.1fs", stats.DurationSeconds))
	if stats.TablesFailed > 0 {
		return fmt.Errorf("%v of %v tables failed to sync", stats.TablesFailed, stats.TablesProcessed)
	}
	return nil
}

// runTables fans the tables out over a bounded worker pool.
func runTables(ctx context.Context, eng *engine.Engine, tables []config.TableConfig, parallel int) {
	if parallel < 1 {
		parallel = 1
	}
	work := make(chan *config.TableConfig)
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				eng.SyncTable(ctx, t)
			}
		}()
	}
	for i := range tables {
		work <- &tables[i]
	}
	close(work)
	wg.Wait()
}

// exportPlans prints the resolved per-table plans without copying anything.
func exportPlans(ctx context.Context, eng *engine.Engine, tables []config.TableConfig, format string) error {
	plans := make([]*engine.Plan, 0, len(tables))
	for i := range tables {
		p, err := eng.PlanTable(ctx, &tables[i])
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}
	var b []byte
	var err error
	switch format {
	case "", "yaml":
		b, err = yaml.Marshal(plans)
	case "json":
		b, err = json.MarshalIndent(plans, "", "  ")
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(b))
	return nil
}

// filterTables narrows the configured tables to the requested CSV.
func filterTables(conf *config.Config, tablesCsv string) ([]config.TableConfig, error) {
	requested := helper.CsvToStringSliceTrimSpaces(tablesCsv)
	if len(requested) == 0 { // if no filter was supplied, sync everything.
		return conf.Tables, nil
	}
	out := make([]config.TableConfig, 0, len(requested))
	for _, name := range requested {
		t := conf.TableByName(name)
		if t == nil {
			return nil, fmt.Errorf("table %q is not configured", name)
		}
		out = append(out, *t)
	}
	return out, nil
}
