package rdbms

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

func TestOpenDbConnection(t *testing.T) {
	log := logrus.New()

	// Test 1 - mock connections open without a database.
	db, err := OpenDbConnection(log, shared.ConnectionDetails{Type: constants.ConnectionTypeMock, LogicalName: "source"})
	if err != nil {
		t.Fatal("expected mock connection to open, got: ", err)
	}
	if db.GetType() != constants.ConnectionTypeMock {
		t.Fatal("unexpected connection type: ", db.GetType())
	}

	// Test 2 - unsupported connection types are rejected.
	_, err = OpenDbConnection(log, shared.ConnectionDetails{Type: "oracle", LogicalName: "source"})
	if err == nil {
		t.Fatal("expected an error for an unsupported connection type")
	}
}

func TestWithConnection(t *testing.T) {
	log := logrus.New()
	ran := false
	err := WithConnection(log, shared.ConnectionDetails{Type: constants.ConnectionTypeMock, LogicalName: "source"},
		func(db shared.Connector) error {
			ran = true
			return nil
		})
	if err != nil || !ran {
		t.Fatal("expected the scoped function to run, got: ", err)
	}
	err = WithConnection(log, shared.ConnectionDetails{Type: "oracle", LogicalName: "source"},
		func(db shared.Connector) error { return nil })
	if err == nil {
		t.Fatal("expected the open error to propagate")
	}
}
