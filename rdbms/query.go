package rdbms

import (
	"context"
	"fmt"

	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

// SqlQuery executes sqltext against db and streams the result set to the supplied
// SqlResultHandler, one callback per row. Values are scanned dynamically so the
// caller does not need to know column types up front.
func SqlQuery(ctx context.Context, log logger.Logger, db shared.Connector, i shared.SqlResultHandler, sqltext string, args ...interface{}) error {
	rows, err := db.QueryContext(ctx, sqltext, args...)
	if err != nil {
		return fmt.Errorf("error during database query using SQL: '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("error fetching columns for SQL: '%v': %w", sqltext, err)
	}
	log.Debug("query returned columns: ", cols)
	// Scan the values dynamically.
	lenCols := len(cols)
	scanPtrs := make([]interface{}, lenCols, lenCols)
	scanVals := make([]interface{}, lenCols, lenCols)
	for idx := 0; idx < lenCols; idx++ { // for each column...
		scanPtrs[idx] = &scanVals[idx] // save the value.
	}
	// Send the header.
	err = i.HandleHeader(cols)
	if err != nil {
		return err
	}
	// Send the rows via callback interface.
	for rows.Next() {
		select { // quit if asked to, else continue...
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Scan.
		err := rows.Scan(scanPtrs...)
		if err != nil {
			return fmt.Errorf("error scanning row: %v", err)
		}
		// Make a new row.
		row := make([]interface{}, lenCols, lenCols)
		for idx := range scanVals { // for each value...
			row[idx] = scanVals[idx]
		}
		// Send the row.
		err = i.HandleRow(row)
		if err != nil {
			return err
		}
	}
	return rows.Err()
}
