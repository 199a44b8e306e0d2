package engine

import (
	"context"
	"time"

	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/metrics"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
	"github.com/dentametrics/pmsync/schema"
	"github.com/dentametrics/pmsync/syncstate"
)

// Engine replicates configured tables from the source into the warehouse.
type Engine struct {
	log        logger.Logger
	cfg        *config.Config
	source     shared.Connector
	target     shared.Connector
	tracker    *syncstate.Tracker
	collector  *metrics.Collector
	reconciler *schema.Reconciler
	resolver   *Resolver
	validator  *Validator
	nowFn      func() time.Time
}

func New(log logger.Logger, cfg *config.Config, source, target shared.Connector, tracker *syncstate.Tracker, collector *metrics.Collector) *Engine {
	return &Engine{
		log:        log,
		cfg:        cfg,
		source:     source,
		target:     target,
		tracker:    tracker,
		collector:  collector,
		reconciler: schema.NewReconciler(log, target, cfg.TargetSchema),
		resolver:   NewResolver(log, target, cfg.TargetSchema),
		validator: NewValidator(log, source, target, cfg.TargetSchema,
			cfg.Validator.SmallTableThreshold, cfg.Validator.CountTolerance),
		nowFn: time.Now,
	}
}

// PlanTable resolves the strategy for one table without copying anything.
func (e *Engine) PlanTable(ctx context.Context, t *config.TableConfig) (*Plan, error) {
	def, err := schema.GetSourceTableDefinition(ctx, e.log, e.source, t.Name)
	if err != nil {
		return nil, err
	}
	lastSync, err := e.tracker.LastSync(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, t, def, lastSync)
}

// SyncTable copies one table end to end and records the outcome in both the
// tracker and the metrics collector. A date overflow from sentinel values the
// coercion pass could not see gets one whole-table retry as a full copy.
func (e *Engine) SyncTable(ctx context.Context, t *config.TableConfig) metrics.TableMetric {
	start := e.nowFn()
	m := metrics.TableMetric{TableName: t.Name}
	err := e.syncTableOnce(ctx, t, &m, false)
	if err != nil && rdbms.IsDateOverflowError(err) { // if bad dates slipped through an incremental load...
		e.log.Warn("date overflow while copying table ", t.Name, ": retrying once with a full copy")
		err = e.syncTableOnce(ctx, t, &m, true)
	}
	m.DurationSeconds = e.nowFn().Sub(start).Seconds()
	if err != nil {
		m.ErrorMessage = err.Error()
		e.log.Error("error syncing table ", t.Name, ": ", err)
		if trackErr := e.tracker.RecordFailure(ctx, t.Name, err); trackErr != nil {
			e.log.Error("error recording failure for table ", t.Name, ": ", trackErr)
		}
	}
	e.collector.RecordTableProcessed(m)
	return m
}

func (e *Engine) syncTableOnce(ctx context.Context, t *config.TableConfig, m *metrics.TableMetric, forceFull bool) error {
	syncStart := e.nowFn().UTC()
	if err := e.tracker.RecordRunning(ctx, t.Name); err != nil {
		return err
	}
	def, err := schema.GetSourceTableDefinition(ctx, e.log, e.source, t.Name)
	if err != nil {
		return err
	}
	if err = e.reconciler.EnsureTargetTable(ctx, def); err != nil {
		return err
	}
	if err = e.reconciler.ReconcileColumns(ctx, def); err != nil {
		return err
	}
	lastSync, err := e.tracker.LastSync(ctx, t.Name)
	if err != nil {
		return err
	}
	tc := *t
	if forceFull {
		tc.Strategy = constants.SyncStrategyFull
	}
	plan, err := e.resolver.Resolve(ctx, &tc, def, lastSync)
	if err != nil {
		return err
	}
	m.Strategy = plan.Strategy

	copier := NewCopier(e.log, e.source, e.target, e.cfg.TargetSchema,
		t.BatchSize, t.SubBatchSize, e.cfg.Copier.RetryAttempts)
	res, err := copier.Copy(ctx, plan, def)
	if err != nil {
		return err
	}
	m.RowsRead = res.RowsRead
	m.RowsWritten = res.RowsWritten

	pk := t.PrimaryKey
	if len(pk) == 0 {
		pk = def.PrimaryKey()
	}
	val, err := e.validator.Validate(ctx, t.Name, plan.Strategy, pk)
	if err != nil {
		return err
	}
	if !val.Passed { // data landed but can't be trusted: keep the old cursor.
		m.Validation = metrics.ValidationFailed
		if trackErr := e.tracker.RecordFailure(ctx, t.Name, errorFromValidation(val)); trackErr != nil {
			e.log.Error("error recording validation failure for table ", t.Name, ": ", trackErr)
		}
		return nil
	}
	m.Validation = metrics.ValidationPassed

	newCursor := res.MaxCursor
	if newCursor.IsZero() { // nothing moved the cursor: resume from this run's start.
		newCursor = syncStart
	}
	return e.tracker.RecordSuccess(ctx, t.Name, res.RowsWritten, newCursor)
}

type validationError struct {
	reason string
}

func (v validationError) Error() string {
	return "validation failed: " + v.reason
}

func errorFromValidation(v *ValidationResult) error {
	return validationError{reason: v.Reason}
}
