package helper

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	got := CsvToStringSliceTrimSpaces(" DateTStamp , SecDateTEntry,PatNum ")
	want := []string{"DateTStamp", "SecDateTEntry", "PatNum"}
	if len(got) != len(want) {
		t.Fatalf("expected %v tokens, got %v", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %v: expected %q, got %q", i, want[i], got[i])
		}
	}
	if CsvToStringSliceTrimSpaces("  ") != nil {
		t.Fatal("expected nil slice for blank input")
	}
}

func TestStringSliceToOrderedMapRoundTrip(t *testing.T) {
	log := logrus.New()
	m := StringSliceToOrderedMap([]string{"PatNum", "LName", "FName"})
	l := make([]string, m.Len())
	idx := 0
	OrderedMapValuesToStringSlice(log, m, &l, &idx)
	if StringsToCsv(l) != "PatNum,LName,FName" {
		t.Fatalf("order not preserved: %v", l)
	}
}

func TestStringInSlice(t *testing.T) {
	s := []string{"patient", "appointment"}
	if !StringInSlice("patient", s) {
		t.Fatal("expected to find patient")
	}
	if StringInSlice("procedurelog", s) {
		t.Fatal("did not expect to find procedurelog")
	}
}
