package shared

import (
	"testing"

	"github.com/cevaris/ordered_map"
	"github.com/sirupsen/logrus"
)

func TestSqlInsertTxtBatch(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.Info("Starting tests for SQL INSERT...")

	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("PatNum", "PatNum")
	omCols := ordered_map.NewOrderedMap()
	omCols.Set("LName", "LName")
	omCols.Set("FName", "FName")

	db, _ := NewMockConnectionWithMockTx(log, "postgres")
	dml := db.GetDmlGenerator()
	o := dml.NewInsertGenerator(&SqlStatementGeneratorConfig{
		Log:             log,
		OutputSchema:    "",
		OutputTable:     "patient",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols}).(SqlStmtTxtBatcher)

	// Create new batch of values size 2.
	o.InitBatch(2)
	batchIsFull, err := o.AddValuesToBatch([]interface{}{1, "Smith", "Anna"})
	if err != nil {
		t.Fatal(err)
	}
	if batchIsFull {
		t.Fatal("the batch should not be full after one of two rows")
	}
	batchIsFull, err = o.AddValuesToBatch([]interface{}{2, "Jones", "Ben"})
	if err != nil {
		t.Fatal(err)
	}
	if !batchIsFull {
		t.Fatal("the batch *should* be full but it is not")
	}
	want := "insert into patient (PatNum,LName,FName) values ( $1,$2,$3 ),( $4,$5,$6 )"
	if got := o.GetStatement(); got != want {
		t.Fatalf("unexpected INSERT SQL:\n got: %v\nwant: %v", got, want)
	}
	if len(o.GetValues()) != 6 {
		t.Fatalf("expected 6 bind values, got %v", len(o.GetValues()))
	}

	// Too many values for the column list should error.
	o.InitBatch(1)
	if _, err = o.AddValuesToBatch([]interface{}{1, "Smith", "Anna", "extra"}); err == nil {
		t.Fatal("expected an error for a value count mismatch")
	}

	// Adding beyond the batch size should error.
	o.InitBatch(1)
	if _, err = o.AddValuesToBatch([]interface{}{1, "Smith", "Anna"}); err != nil {
		t.Fatal(err)
	}
	if _, err = o.AddValuesToBatch([]interface{}{2, "Jones", "Ben"}); err == nil {
		t.Fatal("expected an error adding to a full batch")
	}
}
