package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/rs/xid"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

const (
	ValidationPassed  = "passed"
	ValidationFailed  = "failed"
	ValidationSkipped = "skipped"
)

// Run lifecycle states.
const (
	RunStatusIdle      = "idle"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// TableMetric records the outcome of one table within a run. Recording the
// same table twice keeps the latest metric, so a retried table reports its
// final outcome only.
type TableMetric struct {
	TableName       string  `json:"tableName"`
	Strategy        string  `json:"strategy"`
	RowsRead        int64   `json:"rowsRead"`
	RowsWritten     int64   `json:"rowsWritten"`
	DurationSeconds float64 `json:"durationSeconds"`
	Validation      string  `json:"validation"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
}

// RunStats summarises a whole pipeline run.
type RunStats struct {
	RunId           string  `json:"runId"`
	Environment     string  `json:"environment"`
	Status          string  `json:"status"`
	TablesProcessed int     `json:"tablesProcessed"`
	TablesFailed    int     `json:"tablesFailed"`
	RowsWritten     int64   `json:"rowsWritten"`
	SuccessRate     float64 `json:"successRate"`
	DurationSeconds float64 `json:"durationSeconds"`
	ErrorCount      int     `json:"errorCount"`
}

// Collector accumulates metrics for one pipeline run and persists them to the
// warehouse. Safe for use from concurrent table workers.
type Collector struct {
	log         logger.Logger
	db          shared.Connector
	schema      string
	mu          sync.Mutex
	runId       string
	environment string
	status      string
	startTime   time.Time
	endTime     time.Time
	tables      *om.OrderedMap
	errors      []string
	nowFn       func() time.Time
}

func NewCollector(log logger.Logger, db shared.Connector, schemaName string) *Collector {
	return &Collector{
		log:    log,
		db:     db,
		schema: schemaName,
		status: RunStatusIdle,
		tables: om.NewOrderedMap(),
		nowFn:  time.Now,
	}
}

// StartRun begins a new run and returns its id. Ids embed the start time so
// warehouse queries can sort them without parsing.
func (c *Collector) StartRun(environment string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = c.nowFn().UTC()
	c.endTime = time.Time{}
	c.status = RunStatusRunning
	c.environment = environment
	c.tables = om.NewOrderedMap()
	c.errors = nil
	c.runId = c.startTime.Format(constants.TimeFormatRunId) + "-" + xid.New().String()
	c.log.Info("started pipeline run ", c.runId, " for environment ", environment)
	return c.runId
}

// RecordTableProcessed stores the metric for one table, replacing any earlier
// metric for the same table. A metric carrying an error also appends a
// table-tagged error record.
func (c *Collector) RecordTableProcessed(m TableMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables.Set(m.TableName, m)
	if m.ErrorMessage != "" {
		c.errors = append(c.errors, m.TableName+": "+m.ErrorMessage)
	}
}

// RecordError notes a run-level error that is not tied to one table.
func (c *Collector) RecordError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err.Error())
}

// EndRun stamps the run's end time, finalises the run status and returns the
// final snapshot. A table that failed validation counts as a failed table even
// though it carries no error record.
func (c *Collector) EndRun() RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = c.nowFn().UTC()
	s := c.statsLocked()
	if len(c.errors) > 0 || s.TablesFailed > 0 {
		c.status = RunStatusFailed
	} else {
		c.status = RunStatusCompleted
	}
	s.Status = c.status
	return s
}

// GetStats returns the run summary so far.
func (c *Collector) GetStats() RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Collector) statsLocked() RunStats {
	s := RunStats{
		RunId:       c.runId,
		Environment: c.environment,
		Status:      c.status,
		ErrorCount:  len(c.errors),
	}
	iter := c.tables.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		m := kv.Value.(TableMetric)
		s.TablesProcessed++
		s.RowsWritten += m.RowsWritten
		if m.ErrorMessage != "" || m.Validation == ValidationFailed {
			s.TablesFailed++
		}
	}
	if s.TablesProcessed > 0 { // guard the division for runs that did nothing.
		s.SuccessRate = float64(s.TablesProcessed-s.TablesFailed) / float64(s.TablesProcessed)
	}
	end := c.endTime
	if end.IsZero() {
		end = c.nowFn().UTC()
	}
	if !c.startTime.IsZero() {
		s.DurationSeconds = end.Sub(c.startTime).Seconds()
	}
	return s
}

// GetStatus returns the recorded metric for one table, false when the table
// has not been processed in this run.
func (c *Collector) GetStatus(tableName string) (TableMetric, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tables.Get(tableName)
	if !ok {
		return TableMetric{}, false
	}
	return v.(TableMetric), true
}

// TableMetrics returns the per-table metrics in recording order.
func (c *Collector) TableMetrics() []TableMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TableMetric, 0, c.tables.Len())
	iter := c.tables.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		out = append(out, kv.Value.(TableMetric))
	}
	return out
}

// EnsureMetricsTables creates the warehouse metrics tables on first use.
func (c *Collector) EnsureMetricsTables(ctx context.Context) error {
	pipelineDdl := fmt.Sprintf(`create table if not exists %v (
  run_id varchar(64) not null,
  environment varchar(32),
  status varchar(16),
  start_time timestamp,
  end_time timestamp,
  tables_processed integer not null default 0,
  tables_failed integer not null default 0,
  rows_written bigint not null default 0,
  success_rate double precision not null default 0,
  error_count integer not null default 0,
  created_at timestamp not null default now(),
  primary key (run_id)
)`, c.pipelineTable())
	if _, err := c.db.ExecContext(ctx, pipelineDdl); err != nil {
		return err
	}
	tableDdl := fmt.Sprintf(`create table if not exists %v (
  run_id varchar(64) not null,
  table_name varchar(64) not null,
  strategy varchar(32),
  rows_read bigint not null default 0,
  rows_written bigint not null default 0,
  duration_seconds double precision not null default 0,
  validation_status varchar(16),
  error_message text,
  created_at timestamp not null default now(),
  primary key (run_id, table_name)
)`, c.tableMetricsTable())
	_, err := c.db.ExecContext(ctx, tableDdl)
	return err
}

// Save persists the run summary and per-table metrics in one transaction so
// the warehouse never holds a run snapshot without its table rows. Metrics
// must never break a pipeline that has already copied data, so failures are
// logged and reported as a bool.
func (c *Collector) Save(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.statsLocked()
	tx, err := c.db.Begin()
	if err != nil {
		c.log.Error("error starting the metrics transaction for run ", c.runId, ": ", err)
		return false
	}
	sqlText := fmt.Sprintf(
		"insert into %v (run_id, environment, status, start_time, end_time, tables_processed, tables_failed, rows_written, success_rate, error_count) values ( $1,$2,$3,$4,$5,$6,$7,$8,$9,$10 )",
		c.pipelineTable())
	end := c.endTime
	if end.IsZero() {
		end = c.nowFn().UTC()
	}
	_, err = tx.ExecContext(ctx, sqlText,
		c.runId, c.environment, s.Status,
		c.startTime.Format(constants.TimeFormatDb), end.Format(constants.TimeFormatDb),
		s.TablesProcessed, s.TablesFailed, s.RowsWritten, s.SuccessRate, s.ErrorCount)
	if err != nil {
		c.log.Error("error saving pipeline metrics for run ", c.runId, ": ", err)
		_ = tx.Rollback()
		return false
	}
	sqlText = fmt.Sprintf(
		"insert into %v (run_id, table_name, strategy, rows_read, rows_written, duration_seconds, validation_status, error_message) values ( $1,$2,$3,$4,$5,$6,$7,$8 )",
		c.tableMetricsTable())
	iter := c.tables.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		m := kv.Value.(TableMetric)
		_, err = tx.ExecContext(ctx, sqlText,
			c.runId, m.TableName, m.Strategy, m.RowsRead, m.RowsWritten, m.DurationSeconds, m.Validation, m.ErrorMessage)
		if err != nil {
			c.log.Error("error saving table metrics for ", m.TableName, ": ", err)
			_ = tx.Rollback()
			return false
		}
	}
	if err = tx.Commit(); err != nil {
		c.log.Error("error committing metrics for run ", c.runId, ": ", err)
		return false
	}
	return true
}

// Cleanup deletes metrics older than retentionDays from both tables.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) bool {
	if retentionDays <= 0 {
		retentionDays = constants.MetricsRetentionDaysDefault
	}
	cutoff := c.nowFn().UTC().AddDate(0, 0, -retentionDays).Format(constants.TimeFormatDb)
	ok := true
	for _, tab := range []string{c.tableMetricsTable(), c.pipelineTable()} {
		sqlText := fmt.Sprintf("delete from %v where created_at < $1", tab)
		if _, err := c.db.ExecContext(ctx, sqlText, cutoff); err != nil {
			c.log.Error("error cleaning up metrics in ", tab, ": ", err)
			ok = false
		}
	}
	return ok
}

func (c *Collector) pipelineTable() string {
	st := rdbms.NewSchemaTable(c.schema, constants.PipelineMetricsTableName)
	return st.String()
}

func (c *Collector) tableMetricsTable() string {
	st := rdbms.NewSchemaTable(c.schema, constants.TableMetricsTableName)
	return st.String()
}
