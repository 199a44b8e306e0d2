package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
	"github.com/dentametrics/pmsync/schema"
)

// Plan describes how one table will be extracted and loaded on this run.
type Plan struct {
	Table         string        `json:"table"`
	Strategy      string        `json:"strategy"`
	CursorColumns []string      `json:"cursorColumns,omitempty"`
	SelectSql     string        `json:"selectSql"`
	Args          []interface{} `json:"args,omitempty"`
	Destructive   bool          `json:"destructive"` // replace the target contents on the first batch
	Upsert        bool          `json:"upsert"`      // load with on conflict handling instead of plain inserts
}

// Resolver turns a table config plus its saved cursor into a concrete Plan.
type Resolver struct {
	log    logger.Logger
	target shared.Connector
	schema string
}

func NewResolver(log logger.Logger, target shared.Connector, schemaName string) *Resolver {
	return &Resolver{log: log, target: target, schema: schemaName}
}

// Resolve picks the cheapest safe strategy for the table. The configured
// strategy is a hint: tables that cannot support it degrade to a full copy
// rather than fail.
func (r *Resolver) Resolve(ctx context.Context, t *config.TableConfig, def *schema.TableDefinition, lastSync time.Time) (*Plan, error) {
	p := &Plan{Table: t.Name}
	epoch, _ := time.Parse(constants.TimeFormatDb, constants.EpochSentinel)
	firstSync := !lastSync.After(epoch)

	switch t.Strategy {
	case constants.SyncStrategyFull:
		return r.fullPlan(p, def), nil
	case constants.SyncStrategyBulk:
		// Append only: read everything, never clear the target.
		p.Strategy = constants.SyncStrategyBulk
		p.SelectSql = selectAll(def)
		return p, nil
	case constants.SyncStrategyUpsert:
		p.Strategy = constants.SyncStrategyUpsert
		p.Upsert = true
		if cols := usableCursorColumns(t, def); len(cols) > 0 && !firstSync {
			p.CursorColumns = cols
			p.SelectSql, p.Args = selectSince(def, cols, lastSync)
		} else {
			p.SelectSql = selectAll(def)
		}
		return p, nil
	}

	// Hint is incremental or absent: detect what the table can support.
	if cols := usableCursorColumns(t, def); len(cols) > 0 { // if the table has change timestamps...
		p.Strategy = cursorStrategyTag(cols)
		p.CursorColumns = cols
		p.Upsert = len(def.PrimaryKey()) > 0
		if firstSync { // if we have never synced, read everything.
			p.SelectSql = selectAll(def)
			p.Destructive = !p.Upsert
			return p, nil
		}
		p.SelectSql, p.Args = selectSince(def, cols, lastSync)
		if !p.Upsert { // if there is no key to merge on, changed rows would duplicate.
			r.log.Warn("table ", t.Name, " has incremental columns but no primary key: falling back to a full copy")
			return r.fullPlan(p, def), nil
		}
		return p, nil
	}

	if pk := autoIncrementKey(t, def); pk != "" { // if new rows get increasing keys...
		maxPk, err := r.targetMaxKey(ctx, def.Name, pk)
		if err != nil { // the target table may not exist yet: start from zero.
			r.log.Warn("could not read the max key for table ", t.Name, ": starting from 0: ", err)
			maxPk = 0
		}
		p.Strategy = constants.SyncStrategyPkCursor
		p.CursorColumns = []string{pk}
		p.SelectSql = selectAll(def) + fmt.Sprintf(" where %v > ? order by %v", pk, pk)
		p.Args = []interface{}{maxPk}
		return p, nil
	}

	r.log.Debug("table ", t.Name, " has no incremental signal: using a full copy")
	return r.fullPlan(p, def), nil
}

func (r *Resolver) fullPlan(p *Plan, def *schema.TableDefinition) *Plan {
	p.Strategy = constants.SyncStrategyFull
	p.SelectSql = selectAll(def)
	p.Destructive = true
	p.Upsert = false
	p.CursorColumns = nil
	p.Args = nil
	return p
}

// targetMaxKey returns the highest key already loaded so the extract can skip
// rows the target has seen.
func (r *Resolver) targetMaxKey(ctx context.Context, tableName, pk string) (int64, error) {
	st := rdbms.NewSchemaTable(r.schema, tableName)
	rows, err := r.target.QueryContext(ctx, fmt.Sprintf("select coalesce(max(%v), 0) from %v", pk, st.String()))
	if err != nil {
		return 0, errors.Wrapf(err, "error fetching max key for table %v", tableName)
	}
	defer func() {
		_ = rows.Close()
	}()
	var maxPk int64
	if rows.Next() {
		var v interface{}
		if err = rows.Scan(&v); err != nil {
			return 0, err
		}
		switch x := v.(type) {
		case int64:
			maxPk = x
		case int:
			maxPk = int64(x)
		}
	}
	return maxPk, rows.Err()
}

// usableCursorColumns returns the configured incremental columns that actually
// exist on the table with a date or time type.
func usableCursorColumns(t *config.TableConfig, def *schema.TableDefinition) []string {
	var cols []string
	for _, name := range t.IncrementalColumns {
		c := def.ColumnByName(name)
		if c == nil {
			continue
		}
		switch c.DataType {
		case "datetime", "timestamp", "date":
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// autoIncrementKey returns the table's single integer auto increment key, or ""
// when it has none.
func autoIncrementKey(t *config.TableConfig, def *schema.TableDefinition) string {
	pk := t.PrimaryKey
	if len(pk) == 0 {
		pk = def.PrimaryKey()
	}
	if len(pk) != 1 {
		return ""
	}
	c := def.ColumnByName(pk[0])
	if c == nil || !c.IsAutoIncrement {
		return ""
	}
	switch c.DataType {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return c.Name
	}
	return ""
}

func selectAll(def *schema.TableDefinition) string {
	return fmt.Sprintf("select %v from %v", strings.Join(def.ColumnNames(), ", "), def.Name)
}

// selectSince widens the extract to any row where one of the cursor columns
// moved past the saved cursor. Rows come back in cursor order so a partial run
// leaves the target with a contiguous prefix of the changes.
func selectSince(def *schema.TableDefinition, cursorCols []string, lastSync time.Time) (string, []interface{}) {
	preds := make([]string, len(cursorCols))
	args := make([]interface{}, len(cursorCols))
	for i, c := range cursorCols {
		preds[i] = fmt.Sprintf("%v > ?", c)
		args[i] = lastSync.UTC().Format(constants.TimeFormatDb)
	}
	return selectAll(def) + " where " + strings.Join(preds, " or ") + " order by " + strings.Join(cursorCols, ", "), args
}

// cursorStrategyTag names the resolved cursor kind for metrics and status.
func cursorStrategyTag(cursorCols []string) string {
	if len(cursorCols) > 1 {
		return constants.SyncStrategyMultiCursor
	}
	return constants.SyncStrategyTimestampCursor
}
