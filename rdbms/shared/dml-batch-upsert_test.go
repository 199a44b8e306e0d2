package shared

import (
	"testing"

	"github.com/cevaris/ordered_map"
	"github.com/sirupsen/logrus"
)

func TestSqlUpsertTxtBatch(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.Info("Starting tests for SQL UPSERT...")

	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("PatNum", "PatNum")
	omCols := ordered_map.NewOrderedMap()
	omCols.Set("LName", "LName")
	omCols.Set("FName", "FName")

	db, _ := NewMockConnectionWithMockTx(log, "postgres")
	dml := db.GetDmlGenerator()
	o := dml.NewUpsertGenerator(&SqlStatementGeneratorConfig{
		Log:             log,
		OutputSchema:    "public",
		OutputTable:     "patient",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols}).(SqlStmtTxtBatcher)

	o.InitBatch(1)
	if _, err := o.AddValuesToBatch([]interface{}{1, "Smith", "Anna"}); err != nil {
		t.Fatal(err)
	}
	want := "insert into public.patient (PatNum,LName,FName) values ( $1,$2,$3 ) " +
		"on conflict (PatNum) do update set LName = excluded.LName, FName = excluded.FName"
	if got := o.GetStatement(); got != want {
		t.Fatalf("unexpected UPSERT SQL:\n got: %v\nwant: %v", got, want)
	}
}

func TestSqlUpsertTxtBatchAllKeyColumns(t *testing.T) {
	log := logrus.New()
	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("PatNum", "PatNum")
	omCols := ordered_map.NewOrderedMap()

	dml := &DmlGeneratorTxtBatch{}
	o := dml.NewUpsertGenerator(&SqlStatementGeneratorConfig{
		Log:             log,
		OutputTable:     "patient",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols}).(SqlStmtTxtBatcher)

	o.InitBatch(1)
	if _, err := o.AddValuesToBatch([]interface{}{7}); err != nil {
		t.Fatal(err)
	}
	want := "insert into patient (PatNum) values ( $1 ) on conflict (PatNum) do nothing"
	if got := o.GetStatement(); got != want {
		t.Fatalf("unexpected UPSERT SQL:\n got: %v\nwant: %v", got, want)
	}
}
