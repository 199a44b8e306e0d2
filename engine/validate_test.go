package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

func TestEvaluateCounts(t *testing.T) {
	tests := []struct {
		name       string
		source     int64
		target     int64
		strategy   string
		expectedOk bool
	}{
		{"small table exact match", 100, 100, constants.SyncStrategyFull, true},
		{"small table off by one", 100, 99, constants.SyncStrategyFull, false},
		{"large table within tolerance", 1000000, 999500, constants.SyncStrategyTimestampCursor, true},
		{"large table outside tolerance", 1000000, 990000, constants.SyncStrategyTimestampCursor, false},
		{"large table target ahead of source", 1000000, 1010000, constants.SyncStrategyFull, true},
		{"append only target ahead of source", 500, 600, constants.SyncStrategyBulk, true},
		{"append only target behind source", 600, 500, constants.SyncStrategyBulk, false},
		{"empty table", 0, 0, constants.SyncStrategyFull, true},
		{"empty source with stale target rows", 0, 5, constants.SyncStrategyFull, true},
		{"source at the threshold exactly", constants.SmallTableThresholdDefault, constants.SmallTableThresholdDefault - 1, constants.SyncStrategyFull, false},
	}
	for _, tt := range tests {
		ok, reason := evaluateCounts(tt.source, tt.target, tt.strategy, constants.SmallTableThresholdDefault, constants.CountToleranceDefault)
		if ok != tt.expectedOk {
			t.Errorf("%v: expected %v, got %v (%v)", tt.name, tt.expectedOk, ok, reason)
		}
		if !ok && reason == "" {
			t.Errorf("%v: expected a reason for the failure", tt.name)
		}
	}
}

func TestValidate(t *testing.T) {
	log := logrus.New()
	source, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	target, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	v := NewValidator(log, source, target, "public", 0, 0)

	// Test 1 - matching counts with intact keys pass.
	source.QueueResult([]string{"count"}, [][]interface{}{{int64(100)}})
	target.QueueResult([]string{"count"}, [][]interface{}{{int64(100)}}) // row count
	target.QueueResult([]string{"count"}, [][]interface{}{{int64(0)}})   // null key probe
	res, err := v.Validate(context.Background(), "patient", constants.SyncStrategyFull, []string{"PatNum"})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if !res.Passed {
		t.Fatal("expected validation to pass: ", res.Reason)
	}

	// Test 2 - null keys fail even when counts agree.
	source.QueueResult([]string{"count"}, [][]interface{}{{int64(100)}})
	target.QueueResult([]string{"count"}, [][]interface{}{{int64(100)}})
	target.QueueResult([]string{"count"}, [][]interface{}{{int64(3)}})
	res, err = v.Validate(context.Background(), "patient", constants.SyncStrategyFull, []string{"PatNum"})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.Passed {
		t.Fatal("expected validation to fail on null keys")
	}
	if res.NullKeyRows != 3 {
		t.Fatal("expected 3 null key rows, got: ", res.NullKeyRows)
	}
}
