package syncstate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TableStatus is one row of the tracking table.
type TableStatus struct {
	TableName    string    `json:"tableName"`
	LastSyncTime time.Time `json:"lastSyncTime"`
	LastModified time.Time `json:"lastModified"`
	SyncStatus   string    `json:"syncStatus"`
	RowsSynced   int64     `json:"rowsSynced"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Tracker persists per-table sync state in the warehouse so runs can resume
// from the last good cursor.
type Tracker struct {
	log   logger.Logger
	db    shared.Connector
	table rdbms.SchemaTable
	nowFn func() time.Time
}

func NewTracker(log logger.Logger, db shared.Connector, schemaName string) *Tracker {
	return &Tracker{
		log:   log,
		db:    db,
		table: rdbms.NewSchemaTable(schemaName, constants.TrackingTableName),
		nowFn: time.Now,
	}
}

// EnsureTrackingTable creates the tracking table on first use.
func (t *Tracker) EnsureTrackingTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`create table if not exists %v (
  table_name varchar(64) not null,
  last_sync_time timestamp,
  last_modified timestamp not null default '%v',
  sync_status varchar(16) not null default '%v',
  rows_synced bigint not null default 0,
  error_message text,
  updated_at timestamp not null default now(),
  primary key (table_name)
)`, t.table.String(), constants.EpochSentinel, StatusPending)
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "error creating tracking table")
	}
	return nil
}

// SeedTables inserts pending rows for tables not yet tracked. Existing rows
// keep their cursors.
func (t *Tracker) SeedTables(ctx context.Context, tableNames []string) error {
	sqlText := fmt.Sprintf(
		"insert into %v (table_name, last_modified, sync_status) values ( $1,$2,$3 ) on conflict (table_name) do nothing",
		t.table.String())
	for _, name := range tableNames {
		if _, err := t.db.ExecContext(ctx, sqlText, name, constants.EpochSentinel, StatusPending); err != nil {
			return errors.Wrapf(err, "error seeding tracking row for table %v", name)
		}
	}
	return nil
}

// LastSync returns the saved incremental cursor for the table. Unknown tables
// get a pending row with the epoch cursor, forcing a full first sync.
func (t *Tracker) LastSync(ctx context.Context, tableName string) (time.Time, error) {
	epoch, _ := time.Parse(constants.TimeFormatDb, constants.EpochSentinel)
	rows, err := t.db.QueryContext(ctx,
		fmt.Sprintf("select last_modified from %v where table_name = $1", t.table.String()),
		tableName)
	if err != nil {
		return epoch, errors.Wrapf(err, "error fetching sync state for table %v", tableName)
	}
	defer func() {
		_ = rows.Close()
	}()
	if !rows.Next() { // if this table has never been tracked...
		_ = rows.Close()
		if err := t.SeedTables(ctx, []string{tableName}); err != nil {
			return epoch, err
		}
		return epoch, nil
	}
	var v interface{}
	if err = rows.Scan(&v); err != nil {
		return epoch, errors.Wrapf(err, "error scanning sync state for table %v", tableName)
	}
	return toTime(v, epoch), rows.Err()
}

// RecordRunning marks the table as in flight.
func (t *Tracker) RecordRunning(ctx context.Context, tableName string) error {
	sqlText := fmt.Sprintf(
		"update %v set sync_status = $1, updated_at = $2 where table_name = $3",
		t.table.String())
	_, err := t.db.ExecContext(ctx, sqlText, StatusRunning, t.nowFn().UTC().Format(constants.TimeFormatDb), tableName)
	return err
}

// RecordSuccess advances the cursor to newCursor and clears any previous error.
func (t *Tracker) RecordSuccess(ctx context.Context, tableName string, rowsSynced int64, newCursor time.Time) error {
	now := t.nowFn().UTC().Format(constants.TimeFormatDb)
	sqlText := fmt.Sprintf(
		"update %v set last_sync_time = $1, last_modified = $2, sync_status = $3, rows_synced = $4, error_message = null, updated_at = $5 where table_name = $6",
		t.table.String())
	_, err := t.db.ExecContext(ctx, sqlText,
		now, newCursor.UTC().Format(constants.TimeFormatDb), StatusSuccess, rowsSynced, now, tableName)
	if err != nil {
		return errors.Wrapf(err, "error recording success for table %v", tableName)
	}
	return nil
}

// RecordFailure stores the error and zeroes the row count while keeping
// last_modified untouched so the next run retries from the last good cursor.
func (t *Tracker) RecordFailure(ctx context.Context, tableName string, cause error) error {
	now := t.nowFn().UTC().Format(constants.TimeFormatDb)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	sqlText := fmt.Sprintf(
		"update %v set last_sync_time = $1, sync_status = $2, rows_synced = 0, error_message = $3, updated_at = $4 where table_name = $5",
		t.table.String())
	_, err := t.db.ExecContext(ctx, sqlText, now, StatusFailed, msg, now, tableName)
	if err != nil {
		return errors.Wrapf(err, "error recording failure for table %v", tableName)
	}
	return nil
}

// Status returns all tracked tables ordered by name.
func (t *Tracker) Status(ctx context.Context) ([]TableStatus, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(
		"select table_name, last_sync_time, last_modified, sync_status, rows_synced, error_message from %v order by table_name",
		t.table.String()))
	if err != nil {
		return nil, errors.Wrap(err, "error fetching sync status")
	}
	defer func() {
		_ = rows.Close()
	}()
	epoch, _ := time.Parse(constants.TimeFormatDb, constants.EpochSentinel)
	var out []TableStatus
	for rows.Next() {
		var name, lastSync, lastMod, status, rowCount, errMsg interface{}
		if err = rows.Scan(&name, &lastSync, &lastMod, &status, &rowCount, &errMsg); err != nil {
			return nil, errors.Wrap(err, "error scanning sync status row")
		}
		out = append(out, TableStatus{
			TableName:    toString(name),
			LastSyncTime: toTime(lastSync, time.Time{}),
			LastModified: toTime(lastMod, epoch),
			SyncStatus:   toString(status),
			RowsSynced:   toInt64(rowCount),
			ErrorMessage: toString(errMsg),
		})
	}
	return out, rows.Err()
}

// Dynamic scan conversions. Drivers return timestamps as time.Time when
// parseTime is on, else as []byte.

func toTime(v interface{}, fallback time.Time) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case []byte:
		if ts, err := time.Parse(constants.TimeFormatDb, string(x)); err == nil {
			return ts
		}
	case string:
		if ts, err := time.Parse(constants.TimeFormatDb, x); err == nil {
			return ts
		}
	}
	return fallback
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case []byte:
		var n int64
		_, _ = fmt.Sscanf(strings.TrimSpace(string(x)), "%d", &n)
		return n
	default:
		return 0
	}
}
