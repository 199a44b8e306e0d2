package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

// ValidationResult reports the data quality checks for one table.
type ValidationResult struct {
	Table       string `json:"table"`
	SourceCount int64  `json:"sourceCount"`
	TargetCount int64  `json:"targetCount"`
	NullKeyRows int64  `json:"nullKeyRows"`
	Passed      bool   `json:"passed"`
	Reason      string `json:"reason,omitempty"`
}

// Validator compares source and target after a copy.
type Validator struct {
	log                 logger.Logger
	source              shared.Connector
	target              shared.Connector
	schema              string
	smallTableThreshold int
	countTolerance      float64
}

func NewValidator(log logger.Logger, source, target shared.Connector, schemaName string, smallTableThreshold int, countTolerance float64) *Validator {
	if smallTableThreshold <= 0 {
		smallTableThreshold = constants.SmallTableThresholdDefault
	}
	if countTolerance <= 0 {
		countTolerance = constants.CountToleranceDefault
	}
	return &Validator{
		log:                 log,
		source:              source,
		target:              target,
		schema:              schemaName,
		smallTableThreshold: smallTableThreshold,
		countTolerance:      countTolerance,
	}
}

// Validate runs the row count comparison and the null key probe for one table.
func (v *Validator) Validate(ctx context.Context, tableName, strategy string, primaryKey []string) (*ValidationResult, error) {
	res := &ValidationResult{Table: tableName}
	var err error
	res.SourceCount, err = v.count(ctx, v.source, tableName)
	if err != nil {
		return nil, err
	}
	st := rdbms.NewSchemaTable(v.schema, tableName)
	res.TargetCount, err = v.count(ctx, v.target, st.String())
	if err != nil {
		return nil, err
	}
	if len(primaryKey) > 0 {
		res.NullKeyRows, err = v.nullKeyCount(ctx, st.String(), primaryKey)
		if err != nil {
			return nil, err
		}
	}
	res.Passed, res.Reason = evaluateCounts(res.SourceCount, res.TargetCount, strategy, v.smallTableThreshold, v.countTolerance)
	if res.Passed && res.NullKeyRows > 0 {
		res.Passed = false
		res.Reason = fmt.Sprintf("%v target rows have null key columns", res.NullKeyRows)
	}
	if !res.Passed {
		v.log.Warn("validation failed for table ", tableName, ": ", res.Reason)
	}
	return res, nil
}

// evaluateCounts decides whether source and target row counts agree. Small
// tables must match exactly; large tables only fail when the target falls short
// of the source by more than the tolerance, since a target running ahead means
// rows were deleted at the source after the copy. Append only tables keep
// history so the target may legitimately run ahead of the source.
func evaluateCounts(sourceCount, targetCount int64, strategy string, smallTableThreshold int, tolerance float64) (bool, string) {
	if strategy == constants.SyncStrategyBulk {
		if targetCount >= sourceCount {
			return true, ""
		}
		return false, fmt.Sprintf("append only target has %v rows but source has %v", targetCount, sourceCount)
	}
	if sourceCount == 0 { // nothing to validate.
		return true, ""
	}
	if sourceCount <= int64(smallTableThreshold) { // small tables must match exactly, the boundary included.
		if sourceCount == targetCount {
			return true, ""
		}
		return false, fmt.Sprintf("source has %v rows but target has %v", sourceCount, targetCount)
	}
	ratio := float64(targetCount) / float64(sourceCount)
	if ratio >= 1-tolerance {
		return true, ""
	}
	return false, fmt.Sprintf("source has %v rows but target has %v (%.2f%% shortfall)", sourceCount, targetCount, (1-ratio)*100)
}

func (v *Validator) count(ctx context.Context, db shared.Connector, table string) (int64, error) {
	rows, err := db.QueryContext(ctx, "select count(*) from "+table)
	if err != nil {
		return 0, errors.Wrapf(err, "error counting rows in %v", table)
	}
	defer func() {
		_ = rows.Close()
	}()
	var count int64
	if rows.Next() {
		var x interface{}
		if err = rows.Scan(&x); err != nil {
			return 0, err
		}
		switch n := x.(type) {
		case int64:
			count = n
		case int:
			count = int64(n)
		case []byte:
			_, _ = fmt.Sscanf(string(n), "%d", &count)
		}
	}
	return count, rows.Err()
}

// nullKeyCount probes the target for rows whose key columns lost their values
// in transit.
func (v *Validator) nullKeyCount(ctx context.Context, table string, primaryKey []string) (int64, error) {
	preds := make([]string, len(primaryKey))
	for i, k := range primaryKey {
		preds[i] = k + " is null"
	}
	sqlText := fmt.Sprintf("select count(*) from %v where %v", table, strings.Join(preds, " or "))
	rows, err := v.target.QueryContext(ctx, sqlText)
	if err != nil {
		return 0, errors.Wrapf(err, "error probing null keys in %v", table)
	}
	defer func() {
		_ = rows.Close()
	}()
	var count int64
	if rows.Next() {
		var x interface{}
		if err = rows.Scan(&x); err != nil {
			return 0, err
		}
		if n, ok := x.(int64); ok {
			count = n
		}
	}
	return count, rows.Err()
}
