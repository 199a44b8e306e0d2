package shared

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	h "github.com/dentametrics/pmsync/helper"
)

// SqlUpsertTxtBatch implements interface SqlStmtTxtBatcher and
// is able to generate multi-row INSERT .. ON CONFLICT DO UPDATE statements
// keyed on the target's primary key columns.
type SqlUpsertTxtBatch struct {
	SqlStatementGeneratorConfig // mandatory to be populated.
	sqlCoreCfg
	AllCols   []string
	KeyCols   []string
	OtherCols []string
}

// NewUpsertGenerator creates a new SqlStmtGenerator that implements interface SqlStmtTxtBatcher.
// Configure defaults in SqlStatementGeneratorConfig.
func (*DmlGeneratorTxtBatch) NewUpsertGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtGenerator {
	FixSqlStatementGeneratorConfig(cfg)
	cfg.Log.Debug("Creating NewUpsertGenerator")
	o := &SqlUpsertTxtBatch{SqlStatementGeneratorConfig: *cfg}
	o.setupSqlStatement()
	return o
}

func (o *SqlUpsertTxtBatch) setupSqlStatement() {
	// Build the lists of column names.
	var idx int
	o.KeyCols = make([]string, o.TargetKeyCols.Len())
	idx = 0
	h.OrderedMapValuesToStringSlice(o.Log, o.TargetKeyCols, &o.KeyCols, &idx)
	o.OtherCols = make([]string, o.TargetOtherCols.Len())
	idx = 0
	h.OrderedMapValuesToStringSlice(o.Log, o.TargetOtherCols, &o.OtherCols, &idx)
	o.AllCols = make([]string, 0, len(o.KeyCols)+len(o.OtherCols))
	o.AllCols = append(o.AllCols, o.KeyCols...)
	o.AllCols = append(o.AllCols, o.OtherCols...)
	// Build the conflict action: update the non-key columns from the proposed row.
	var conflictAction string
	if len(o.OtherCols) > 0 { // if there are non-key columns to merge...
		sets := make([]string, len(o.OtherCols))
		for i, col := range o.OtherCols {
			sets[i] = fmt.Sprintf("%v = excluded.%v", col, col)
		}
		conflictAction = "do update set " + strings.Join(sets, ", ")
	} else { // else the row is all key; conflicts mean the row already exists...
		conflictAction = "do nothing"
	}
	// Populate the SQL template.
	o.sqlStmtTemplate = `insert into <SCHEMA><SEPARATOR><TABLE> (<TGT-COLS>) values <VALUES> on conflict (<KEY-COLS>) <ACTION>`
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SCHEMA>", o.OutputSchema, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SEPARATOR>", o.SchemaSeparator, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TABLE>", o.OutputTable, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TGT-COLS>", strings.Join(o.AllCols, ","), 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<KEY-COLS>", strings.Join(o.KeyCols, ","), 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<ACTION>", conflictAction, 1)
	o.Log.Debug("setup UPSERT generator with SQL (VALUES pending): ", o.sqlStmtTemplate)
}

func (o *SqlUpsertTxtBatch) InitBatch(batchSize int) {
	o.Log.Debug("initBatch() for UPSERT...")
	if o.previousNumRowsInBatch != batchSize { // if we have a new batch size and need to generate SQL...
		o.sqlStmt = o.sqlStmtTemplate // reset the sqlStmt from our template.
	}
	o.batchSize = batchSize
	o.rowsInBatch = 0
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.AllCols)) // many values per row in a batch.
}

func (o *SqlUpsertTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	if o.rowsInBatch >= o.batchSize {
		err = errors.New("no more rows allowed in UPSERT batch")
		batchIsFull = true
		return
	}
	if len(values) != len(o.AllCols) {
		err = errors.Errorf("the number of values supplied (%v) does not match the number of table columns (%v)", len(values), len(o.AllCols))
		return
	}
	o.sqlValues = append(o.sqlValues, values...)
	o.rowsInBatch++
	batchIsFull = o.rowsInBatch >= o.batchSize
	return
}

func (o *SqlUpsertTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}

func (o *SqlUpsertTxtBatch) GetStatement() string {
	if o.previousNumRowsInBatch != o.batchSize { // if we have a new batch size and need to generate SQL...
		allRows := strings.Builder{}
		valIdx := 1
		for rowIdx := 1; rowIdx <= o.rowsInBatch; rowIdx++ { // for each row in the batch...
			row := strings.Builder{}
			for idy := 0; idy < len(o.AllCols); idy++ { // for each field in the current row...
				row.WriteString(fmt.Sprintf(",$%v", valIdx))
				valIdx++
			}
			allRows.WriteString(fmt.Sprintf(",( %v )", strings.TrimLeft(row.String(), ",")))
		}
		o.sqlStmt = strings.Replace(o.sqlStmt, "<VALUES>", strings.TrimLeft(allRows.String(), ","), 1)
		o.previousNumRowsInBatch = o.batchSize
	}
	o.Log.Debug("SQL batch UPSERT generated statement: ", o.sqlStmt)
	return o.sqlStmt
}
