package rdbms

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

type captureHandler struct {
	header []string
	rows   [][]interface{}
	rowErr error
}

func (h *captureHandler) HandleHeader(header []string) error {
	h.header = header
	return nil
}

func (h *captureHandler) HandleRow(row []interface{}) error {
	if h.rowErr != nil {
		return h.rowErr
	}
	h.rows = append(h.rows, row)
	return nil
}

func TestSqlQuery(t *testing.T) {
	log := logrus.New()
	db, _ := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	db.QueueResult([]string{"PatNum", "LName"}, [][]interface{}{
		{int64(1), "Smith"},
		{int64(2), "Jones"},
	})

	// Test 1 - header and rows arrive via the handler.
	h := &captureHandler{}
	err := SqlQuery(context.Background(), log, db, h, "select PatNum, LName from patient")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if len(h.header) != 2 || h.header[0] != "PatNum" || h.header[1] != "LName" {
		t.Fatal("unexpected header: ", h.header)
	}
	if len(h.rows) != 2 {
		t.Fatal("expected 2 rows, got: ", len(h.rows))
	}
	if h.rows[1][1] != "Jones" {
		t.Fatal("unexpected row value: ", h.rows[1][1])
	}

	// Test 2 - handler errors abort the stream.
	db.QueueResult([]string{"PatNum"}, [][]interface{}{{int64(1)}})
	h = &captureHandler{rowErr: fmt.Errorf("handler failed")}
	err = SqlQuery(context.Background(), log, db, h, "select PatNum from patient")
	if err == nil {
		t.Fatal("expected the handler error to propagate")
	}
}
