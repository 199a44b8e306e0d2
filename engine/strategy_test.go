package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/rdbms/shared"
	"github.com/dentametrics/pmsync/schema"
)

func patientDefinition() *schema.TableDefinition {
	return &schema.TableDefinition{
		Name: "patient",
		Columns: []schema.Column{
			{Name: "PatNum", DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: true, IsAutoIncrement: true},
			{Name: "LName", DataType: "varchar", ColumnType: "varchar(100)", Length: 100, Nullable: true},
			{Name: "DateTStamp", DataType: "datetime", ColumnType: "datetime", Nullable: true},
		},
	}
}

// securitylog has an auto increment key but no change timestamps.
func securitylogDefinition() *schema.TableDefinition {
	return &schema.TableDefinition{
		Name: "securitylog",
		Columns: []schema.Column{
			{Name: "SecurityLogNum", DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: true, IsAutoIncrement: true},
			{Name: "LogText", DataType: "text", ColumnType: "text", Nullable: true},
		},
	}
}

// definition with neither a usable key nor timestamps.
func prefDefinition() *schema.TableDefinition {
	return &schema.TableDefinition{
		Name: "preference",
		Columns: []schema.Column{
			{Name: "PrefName", DataType: "varchar", ColumnType: "varchar(255)", Length: 255},
			{Name: "ValueString", DataType: "text", ColumnType: "text", Nullable: true},
		},
	}
}

func newTestResolver() (*Resolver, *shared.MockConnection) {
	log := logrus.New()
	db, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	return NewResolver(log, db, "public"), db
}

func epochTime() time.Time {
	t, _ := time.Parse(constants.TimeFormatDb, constants.EpochSentinel)
	return t
}

func TestResolveFullHint(t *testing.T) {
	r, _ := newTestResolver()
	p, err := r.Resolve(context.Background(), &config.TableConfig{Name: "patient", Strategy: constants.SyncStrategyFull}, patientDefinition(), epochTime())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyFull || !p.Destructive || p.Upsert {
		t.Fatal("unexpected plan: ", p)
	}
	if p.SelectSql != "select PatNum, LName, DateTStamp from patient" {
		t.Fatal("unexpected select: ", p.SelectSql)
	}
}

func TestResolveBulkHint(t *testing.T) {
	r, _ := newTestResolver()
	p, err := r.Resolve(context.Background(), &config.TableConfig{Name: "securitylog", Strategy: constants.SyncStrategyBulk}, securitylogDefinition(), epochTime())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyBulk || p.Destructive || p.Upsert {
		t.Fatal("unexpected plan: ", p)
	}
	if len(p.Args) != 0 {
		t.Fatal("expected no args for a bulk read, got: ", p.Args)
	}
}

func TestResolveTimestampCursor(t *testing.T) {
	r, _ := newTestResolver()
	lastSync := time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)
	tc := &config.TableConfig{Name: "patient", PrimaryKey: []string{"PatNum"}, IncrementalColumns: []string{"DateTStamp"}}
	p, err := r.Resolve(context.Background(), tc, patientDefinition(), lastSync)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyTimestampCursor || !p.Upsert || p.Destructive {
		t.Fatal("unexpected plan: ", p)
	}
	if p.SelectSql != "select PatNum, LName, DateTStamp from patient where DateTStamp > ? order by DateTStamp" {
		t.Fatal("unexpected select: ", p.SelectSql)
	}
	if len(p.Args) != 1 || p.Args[0] != "2024-02-28 09:30:00" {
		t.Fatal("unexpected args: ", p.Args)
	}
}

func TestResolveFirstSyncReadsEverything(t *testing.T) {
	r, _ := newTestResolver()
	tc := &config.TableConfig{Name: "patient", IncrementalColumns: []string{"DateTStamp"}}
	p, err := r.Resolve(context.Background(), tc, patientDefinition(), epochTime())
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyTimestampCursor || !p.Upsert {
		t.Fatal("unexpected plan: ", p)
	}
	if p.SelectSql != "select PatNum, LName, DateTStamp from patient" {
		t.Fatal("expected a full extract on first sync, got: ", p.SelectSql)
	}
}

func TestResolveKeyCursor(t *testing.T) {
	r, db := newTestResolver()
	db.QueueResult([]string{"max"}, [][]interface{}{{int64(500)}})
	tc := &config.TableConfig{Name: "securitylog"}
	p, err := r.Resolve(context.Background(), tc, securitylogDefinition(), time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyPkCursor {
		t.Fatal("unexpected strategy: ", p.Strategy)
	}
	if p.SelectSql != "select SecurityLogNum, LogText from securitylog where SecurityLogNum > ? order by SecurityLogNum" {
		t.Fatal("unexpected select: ", p.SelectSql)
	}
	if len(p.Args) != 1 || p.Args[0] != int64(500) {
		t.Fatal("unexpected args: ", p.Args)
	}
}

func TestResolveDegradesToFull(t *testing.T) {
	r, _ := newTestResolver()
	p, err := r.Resolve(context.Background(), &config.TableConfig{Name: "preference"}, prefDefinition(), time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyFull || !p.Destructive {
		t.Fatal("expected a destructive full plan, got: ", p)
	}
}

func TestResolveMultiColumnCursor(t *testing.T) {
	r, _ := newTestResolver()
	def := patientDefinition()
	def.Columns = append(def.Columns, schema.Column{Name: "SecDateEntry", DataType: "datetime", ColumnType: "datetime", Nullable: true})
	lastSync := time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)
	tc := &config.TableConfig{Name: "patient", IncrementalColumns: []string{"DateTStamp", "SecDateEntry"}}
	p, err := r.Resolve(context.Background(), tc, def, lastSync)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if p.Strategy != constants.SyncStrategyMultiCursor {
		t.Fatal("unexpected strategy: ", p.Strategy)
	}
	expected := "select PatNum, LName, DateTStamp, SecDateEntry from patient where DateTStamp > ? or SecDateEntry > ? order by DateTStamp, SecDateEntry"
	if p.SelectSql != expected {
		t.Fatal("unexpected select: ", p.SelectSql)
	}
	if len(p.Args) != 2 {
		t.Fatal("expected 2 args, got: ", p.Args)
	}
}
