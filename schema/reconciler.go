package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

// Reconciler keeps target tables structurally compatible with their source
// definitions. Identifiers are written unquoted so they fold to lower case in
// the warehouse.
type Reconciler struct {
	log    logger.Logger
	target shared.Connector
	mapper Mapper
	schema string
}

func NewReconciler(log logger.Logger, target shared.Connector, schemaName string) *Reconciler {
	return &Reconciler{
		log:    log,
		target: target,
		mapper: NewMysqlToPostgresDataTypeMapper(log),
		schema: schemaName,
	}
}

// EnsureTargetTable creates the target table from the source definition if it
// does not already exist.
func (r *Reconciler) EnsureTargetTable(ctx context.Context, def *TableDefinition) error {
	exists, err := r.tableExists(ctx, def.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	st := rdbms.NewSchemaTable(r.schema, def.Name)
	ddl := r.BuildCreateTableDDL(def)
	r.log.Info("creating target table ", st.String())
	r.log.Debug("create table DDL: ", ddl)
	if _, err = r.target.ExecContext(ctx, ddl); err != nil {
		return errors.Wrapf(err, "error creating target table %v", def.Name)
	}
	return nil
}

// BuildCreateTableDDL renders CREATE TABLE DDL for the mapped source definition.
// Auto increment integer keys become serial types so ad hoc warehouse inserts
// still work.
func (r *Reconciler) BuildCreateTableDDL(def *TableDefinition) string {
	st := rdbms.NewSchemaTable(r.schema, def.Name)
	cols := make([]string, 0, len(def.Columns)+1)
	for i := range def.Columns {
		c := &def.Columns[i]
		dataType := r.mapper.Map(c)
		if c.IsAutoIncrement { // if the source generates this key...
			switch dataType {
			case "bigint":
				dataType = "bigserial"
			case "integer", "smallint":
				dataType = "serial"
			}
		}
		notNull := ""
		if c.IsPrimaryKey && !c.IsAutoIncrement { // serial types imply not null.
			notNull = " not null"
		}
		cols = append(cols, fmt.Sprintf("  %v %v%v", c.Name, dataType, notNull))
	}
	if pk := def.PrimaryKey(); len(pk) > 0 {
		cols = append(cols, fmt.Sprintf("  primary key (%v)", strings.Join(pk, ",")))
	}
	return fmt.Sprintf("create table %v (\n%v\n)", st.String(), strings.Join(cols, ",\n"))
}

// ReconcileColumns adds columns that exist in the source but not in the target.
// A column that cannot be added is logged and skipped so the table still copies
// with the columns both sides share. Columns that only exist in the target are
// kept and logged since dropping warehouse history is never safe to do
// automatically.
func (r *Reconciler) ReconcileColumns(ctx context.Context, def *TableDefinition) error {
	targetCols, err := r.targetColumns(ctx, def.Name)
	if err != nil {
		return err
	}
	st := rdbms.NewSchemaTable(r.schema, def.Name)
	sourceCols := make(map[string]struct{}, len(def.Columns))
	var failed []string
	for i := range def.Columns { // for each source column...
		c := &def.Columns[i]
		sourceCols[strings.ToLower(c.Name)] = struct{}{}
		if _, ok := targetCols[strings.ToLower(c.Name)]; ok { // if the target already has it...
			continue
		}
		ddl := fmt.Sprintf("alter table %v add column %v %v", st.String(), c.Name, r.mapper.Map(c))
		r.log.Info("adding column ", c.Name, " to target table ", st.String())
		if _, err := r.target.ExecContext(ctx, ddl); err != nil { // if this column can't be added...
			r.log.Error("error adding column ", c.Name, " to ", st.String(), ": ", err)
			failed = append(failed, c.Name)
		}
	}
	for name := range targetCols {
		if _, ok := sourceCols[name]; !ok { // if the source no longer has this column...
			r.log.Warn("column ", name, " exists in target table ", st.String(), " but not in source: leaving it in place")
		}
	}
	if len(failed) > 0 { // if some columns could not be added...
		r.log.Warn("skipped columns on target table ", st.String(), ": ", strings.Join(failed, ","), ": continuing with the columns in place")
	}
	return nil
}

func (r *Reconciler) tableExists(ctx context.Context, tableName string) (bool, error) {
	rows, err := r.target.QueryContext(ctx,
		"select count(*) from information_schema.tables where table_schema = $1 and table_name = $2",
		r.schema, strings.ToLower(tableName))
	if err != nil {
		return false, errors.Wrapf(err, "error checking target table %v", tableName)
	}
	defer func() {
		_ = rows.Close()
	}()
	count := 0
	if rows.Next() {
		var v interface{}
		if err = rows.Scan(&v); err != nil {
			return false, err
		}
		count = catalogInt(v)
	}
	return count > 0, rows.Err()
}

// targetColumns returns the lower-cased column names present in the target table.
func (r *Reconciler) targetColumns(ctx context.Context, tableName string) (map[string]struct{}, error) {
	rows, err := r.target.QueryContext(ctx,
		"select column_name from information_schema.columns where table_schema = $1 and table_name = $2",
		r.schema, strings.ToLower(tableName))
	if err != nil {
		return nil, errors.Wrapf(err, "error fetching target columns for table %v", tableName)
	}
	defer func() {
		_ = rows.Close()
	}()
	cols := make(map[string]struct{})
	for rows.Next() {
		var v interface{}
		if err = rows.Scan(&v); err != nil {
			return nil, err
		}
		cols[strings.ToLower(catalogString(v))] = struct{}{}
	}
	return cols, rows.Err()
}
