package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

func drainSql(c chan string) []string {
	var out []string
	for {
		select {
		case s := <-c:
			out = append(out, s)
		default:
			return out
		}
	}
}

func findSql(stmts []string, substr string) string {
	for _, s := range stmts {
		if strings.Contains(s, substr) {
			return s
		}
	}
	return ""
}

func TestCopyFullReplace(t *testing.T) {
	log := logrus.New()
	source, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	target, chanSql := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)

	ts1 := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	ts2 := time.Date(2024, 2, 28, 10, 0, 0, 0, time.UTC)
	source.QueueResult([]string{"PatNum", "LName", "DateTStamp"}, [][]interface{}{
		{int64(1), []byte("Smith"), ts1},
		{int64(2), []byte("Jones"), ts2},
		{int64(3), []byte("Brown"), ts1},
	})

	plan := &Plan{
		Table:         "patient",
		Strategy:      constants.SyncStrategyFull,
		SelectSql:     "select PatNum, LName, DateTStamp from patient",
		Destructive:   true,
		CursorColumns: []string{"DateTStamp"},
	}
	c := NewCopier(log, source, target, "public", 2, 2, 1)
	res, err := c.Copy(context.Background(), plan, patientDefinition())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.RowsRead != 3 || res.RowsWritten != 3 {
		t.Fatal("expected 3 rows read and written, got: ", res)
	}
	if !res.MaxCursor.Equal(ts2) {
		t.Fatal("expected the max cursor to advance, got: ", res.MaxCursor)
	}

	stmts := drainSql(chanSql)
	if findSql(stmts, "delete from public.patient") == "" {
		t.Fatal("expected the first batch to clear the target, got: ", stmts)
	}
	if findSql(stmts, "insert into public.patient (PatNum,LName,DateTStamp) values ( $1,$2,$3 ),( $4,$5,$6 )") == "" {
		t.Fatal("expected a two row insert, got: ", stmts)
	}
	// The final partial batch gets its own single row statement.
	var singleRow bool
	for _, s := range stmts {
		if strings.HasSuffix(s, "values ( $1,$2,$3 )") {
			singleRow = true
		}
	}
	if !singleRow {
		t.Fatal("expected a single row insert for the final batch, got: ", stmts)
	}
	// Two batches means two commits.
	commits := 0
	for _, s := range stmts {
		if s == "commit" {
			commits++
		}
	}
	if commits != 2 {
		t.Fatal("expected 2 commits, got: ", commits)
	}
}

func TestCopyUpsert(t *testing.T) {
	log := logrus.New()
	source, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	target, chanSql := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)

	ts := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	source.QueueResult([]string{"PatNum", "LName", "DateTStamp"}, [][]interface{}{
		{int64(1), []byte("Smith"), ts},
	})

	plan := &Plan{
		Table:         "patient",
		Strategy:      constants.SyncStrategyTimestampCursor,
		SelectSql:     "select PatNum, LName, DateTStamp from patient where DateTStamp > ? order by DateTStamp",
		Args:          []interface{}{"2024-02-01 00:00:00"},
		Upsert:        true,
		CursorColumns: []string{"DateTStamp"},
	}
	c := NewCopier(log, source, target, "public", 10, 10, 1)
	res, err := c.Copy(context.Background(), plan, patientDefinition())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.RowsWritten != 1 {
		t.Fatal("expected 1 row written, got: ", res.RowsWritten)
	}
	stmts := drainSql(chanSql)
	upsert := findSql(stmts, "on conflict (PatNum) do update set")
	if upsert == "" {
		t.Fatal("expected an upsert statement, got: ", stmts)
	}
	if !strings.Contains(upsert, "LName = excluded.LName") {
		t.Fatal("expected non key columns in the update clause, got: ", upsert)
	}
	if findSql(stmts, "delete from") != "" {
		t.Fatal("upserts must not clear the target, got: ", stmts)
	}
}

func TestCopyEmptyDestructiveStillClears(t *testing.T) {
	log := logrus.New()
	source, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	target, chanSql := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	source.QueueResult([]string{"PatNum", "LName", "DateTStamp"}, nil)

	plan := &Plan{
		Table:       "patient",
		Strategy:    constants.SyncStrategyFull,
		SelectSql:   "select PatNum, LName, DateTStamp from patient",
		Destructive: true,
	}
	c := NewCopier(log, source, target, "public", 10, 10, 1)
	res, err := c.Copy(context.Background(), plan, patientDefinition())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.RowsWritten != 0 {
		t.Fatal("expected no rows written, got: ", res.RowsWritten)
	}
	stmts := drainSql(chanSql)
	if findSql(stmts, "delete from public.patient") == "" {
		t.Fatal("expected the target to be cleared, got: ", stmts)
	}
}
