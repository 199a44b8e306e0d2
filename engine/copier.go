package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/helper"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
	"github.com/dentametrics/pmsync/schema"
)

// CopyResult reports what one table copy moved.
type CopyResult struct {
	RowsRead    int64
	RowsWritten int64
	MaxCursor   time.Time // highest cursor column value seen in the extract
}

// Copier streams rows from the source and loads them into the target in
// batched transactions.
type Copier struct {
	log           logger.Logger
	source        shared.Connector
	target        shared.Connector
	schema        string
	batchSize     int
	subBatchSize  int
	retryAttempts int
}

func NewCopier(log logger.Logger, source, target shared.Connector, schemaName string, batchSize, subBatchSize, retryAttempts int) *Copier {
	return &Copier{
		log:           log,
		source:        source,
		target:        target,
		schema:        schemaName,
		batchSize:     batchSize,
		subBatchSize:  subBatchSize,
		retryAttempts: retryAttempts,
	}
}

// Copy executes the plan against the source and loads the target. Each batch
// is one target transaction; a destructive plan clears the target in the same
// transaction as the first batch so readers never see an empty table.
func (c *Copier) Copy(ctx context.Context, plan *Plan, def *schema.TableDefinition) (*CopyResult, error) {
	w := &batchWriter{
		log:    c.log,
		target: c.target,
		schema: c.schema,
		plan:   plan,
		def:    def,
		copier: c,
		ctx:    ctx,
	}
	c.log.Info("copying table ", def.Name, " using strategy ", plan.Strategy)
	c.log.Debug("extract SQL: ", plan.SelectSql, " args: ", plan.Args)
	if err := rdbms.SqlQuery(ctx, c.log, c.source, w, plan.SelectSql, plan.Args...); err != nil {
		return nil, err
	}
	if err := w.flush(); err != nil { // final partial batch.
		return nil, err
	}
	if plan.Destructive && w.result.RowsRead == 0 { // if a full copy found nothing, still clear the target.
		if err := w.clearTarget(); err != nil {
			return nil, err
		}
	}
	c.log.Info("copied ", w.result.RowsWritten, " rows into table ", def.Name)
	return &w.result, nil
}

// batchWriter implements shared.SqlResultHandler, buffering rows and flushing
// them to the target a batch at a time.
type batchWriter struct {
	log        logger.Logger
	target     shared.Connector
	schema     string
	plan       *Plan
	def        *schema.TableDefinition
	copier     *Copier
	ctx        context.Context
	coercer    *rowCoercer
	gen        shared.SqlStmtTxtBatcher
	colOrder   []int // output position -> header index, keys first for upserts
	cursorIdx  []int
	batch      [][]interface{}
	firstFlush bool
	result     CopyResult
}

func (w *batchWriter) HandleHeader(header []string) error {
	w.coercer = newRowCoercer(w.def, header)
	w.firstFlush = true

	headerIdx := make(map[string]int, len(header))
	for i, name := range header {
		headerIdx[strings.ToLower(name)] = i
	}
	// Track cursor columns so the engine can advance the saved cursor.
	for _, name := range w.plan.CursorColumns {
		if i, ok := headerIdx[strings.ToLower(name)]; ok {
			w.cursorIdx = append(w.cursorIdx, i)
		}
	}
	// Split the columns into keys and others; the generators emit keys first.
	isKey := make(map[string]bool)
	if w.plan.Upsert {
		for _, k := range w.def.PrimaryKey() {
			isKey[strings.ToLower(k)] = true
		}
	}
	var keyNames, otherNames []string
	for _, name := range header {
		if isKey[strings.ToLower(name)] {
			w.colOrder = append(w.colOrder, headerIdx[strings.ToLower(name)])
			keyNames = append(keyNames, name)
		}
	}
	for _, name := range header {
		if !isKey[strings.ToLower(name)] {
			w.colOrder = append(w.colOrder, headerIdx[strings.ToLower(name)])
			otherNames = append(otherNames, name)
		}
	}
	keyCols := helper.StringSliceToOrderedMap(keyNames)
	otherCols := helper.StringSliceToOrderedMap(otherNames)
	cfg := &shared.SqlStatementGeneratorConfig{
		Log:             w.log,
		OutputSchema:    w.schema,
		OutputTable:     w.def.Name,
		TargetKeyCols:   keyCols,
		TargetOtherCols: otherCols,
	}
	dml := w.target.GetDmlGenerator()
	if dml == nil {
		return fmt.Errorf("target connection for table %v has no DML generator", w.def.Name)
	}
	var gen shared.SqlStmtGenerator
	if w.plan.Upsert {
		gen = dml.NewUpsertGenerator(cfg)
	} else {
		gen = dml.NewInsertGenerator(cfg)
	}
	batcher, ok := gen.(shared.SqlStmtTxtBatcher)
	if !ok {
		return fmt.Errorf("DML generator for table %v does not support batching", w.def.Name)
	}
	w.gen = batcher
	w.batch = make([][]interface{}, 0, w.copier.batchSize)
	return nil
}

func (w *batchWriter) HandleRow(row []interface{}) error {
	w.result.RowsRead++
	w.trackCursor(row)
	row = w.coercer.coerce(row)
	// Reorder to match the generator's column list.
	out := make([]interface{}, len(w.colOrder))
	for i, src := range w.colOrder {
		out[i] = row[src]
	}
	w.batch = append(w.batch, out)
	if len(w.batch) >= w.copier.batchSize { // if the batch is full...
		return w.flush()
	}
	return nil
}

// trackCursor remembers the highest cursor value seen so far.
func (w *batchWriter) trackCursor(row []interface{}) {
	for _, i := range w.cursorIdx {
		if i >= len(row) {
			continue
		}
		if ts, ok := row[i].(time.Time); ok && ts.After(w.result.MaxCursor) {
			w.result.MaxCursor = ts
		}
	}
}

// flush writes the buffered batch in one target transaction, retrying
// transient failures from a clean transaction each attempt.
func (w *batchWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	batch := w.batch
	w.batch = w.batch[:0]
	destructive := w.plan.Destructive && w.firstFlush
	op := func() error {
		tx, err := w.target.Begin()
		if err != nil {
			return err
		}
		if destructive { // replace the target contents atomically with the first batch.
			st := rdbms.NewSchemaTable(w.schema, w.def.Name)
			if _, err = tx.ExecContext(w.ctx, "delete from "+st.String()); err != nil {
				_ = tx.Rollback()
				return errors.Wrapf(err, "error clearing target table %v", w.def.Name)
			}
		}
		for start := 0; start < len(batch); start += w.copier.subBatchSize { // for each sub-batch...
			end := start + w.copier.subBatchSize
			if end > len(batch) {
				end = len(batch)
			}
			sub := batch[start:end]
			w.gen.InitBatch(len(sub))
			for _, row := range sub {
				if _, err = w.gen.AddValuesToBatch(row); err != nil {
					_ = tx.Rollback()
					return err
				}
			}
			if _, err = tx.ExecContext(w.ctx, w.gen.GetStatement(), w.gen.GetValues()...); err != nil {
				_ = tx.Rollback()
				return errors.Wrapf(err, "error loading batch into table %v", w.def.Name)
			}
		}
		return tx.Commit()
	}
	if err := rdbms.ExecuteWithRetry(w.log, "load batch into "+w.def.Name, w.copier.retryAttempts, op); err != nil {
		return err
	}
	w.result.RowsWritten += int64(len(batch))
	w.firstFlush = false
	return nil
}

// clearTarget empties the target table for destructive plans whose extract
// returned no rows.
func (w *batchWriter) clearTarget() error {
	st := rdbms.NewSchemaTable(w.schema, w.def.Name)
	op := func() error {
		_, err := w.target.ExecContext(w.ctx, "delete from "+st.String())
		return err
	}
	return rdbms.ExecuteWithRetry(w.log, "clear target table "+w.def.Name, w.copier.retryAttempts, op)
}
