package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dentametrics/pmsync/logger"
)

// NewMockConnectionWithMockTx returns a Connector whose transactions are
// recorded rather than executed. The returned channel receives alternating
// records of SQL and args for every Exec, plus "commit"/"rollback" markers.
// Queue canned query results with QueueResult() before calling Query.
func NewMockConnectionWithMockTx(log logger.Logger, dbType string) (*MockConnection, chan string) {
	c := make(chan string, 1000)
	return &MockConnection{
		log:     log,
		dbType:  dbType,
		dml:     &DmlGeneratorTxtBatch{},
		ChanSql: c,
	}, c
}

type MockConnection struct {
	log          logger.Logger
	dbType       string
	dml          DmlGenerator
	ChanSql      chan string
	results      []*MockRows
	ExecErr      error  // when set, Exec on the connection and its transactions returns this error.
	ExecErrMatch string // when set, ExecErr only fires for SQL containing this fragment.
	ExecErrTimes int    // when positive, ExecErr fires this many times and then clears itself.
}

// QueueResult adds a canned result set returned by the next Query call.
// Results are consumed in FIFO order; when the queue is empty an empty
// result set is returned.
func (m *MockConnection) QueueResult(cols []string, rows [][]interface{}) {
	m.results = append(m.results, &MockRows{cols: cols, rows: rows, cursor: -1})
}

func (m *MockConnection) record(query string, args ...interface{}) {
	select { // don't block tests that ignore the channel.
	case m.ChanSql <- query:
	default:
	}
	if len(args) > 0 {
		select {
		case m.ChanSql <- fmt.Sprint(args...):
		default:
		}
	}
}

func (m *MockConnection) Begin() (Transacter, error) {
	return &MockTx{conn: m}, nil
}

func (m *MockConnection) Exec(query string, args ...interface{}) (Result, error) {
	return m.ExecContext(context.Background(), query, args...)
}

func (m *MockConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	m.record(query, args...)
	if m.ExecErr != nil && (m.ExecErrMatch == "" || strings.Contains(query, m.ExecErrMatch)) {
		err := m.ExecErr
		if m.ExecErrTimes > 0 {
			m.ExecErrTimes--
			if m.ExecErrTimes == 0 {
				m.ExecErr = nil
			}
		}
		return nil, err
	}
	return &MockResult{rowsAffected: 1}, nil
}

func (m *MockConnection) Query(query string, args ...interface{}) (Rows, error) {
	return m.QueryContext(context.Background(), query, args...)
}

func (m *MockConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	m.record(query, args...)
	if len(m.results) == 0 { // if no canned results are queued...
		return &MockRows{cursor: -1}, nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r, nil
}

func (m *MockConnection) Close() {}

func (m *MockConnection) GetType() string {
	return m.dbType
}

func (m *MockConnection) GetDmlGenerator() DmlGenerator {
	return m.dml
}

// MockTx records DML against the parent connection's channel.
type MockTx struct {
	conn *MockConnection
}

func (t *MockTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *MockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *MockTx) Commit() error {
	t.conn.record("commit")
	return nil
}

func (t *MockTx) Rollback() error {
	t.conn.record("rollback")
	return nil
}

// MockRows implements interface Rows over a canned result set.
type MockRows struct {
	cols   []string
	rows   [][]interface{}
	cursor int
}

func (r *MockRows) Close() error { return nil }

func (r *MockRows) Columns() ([]string, error) { return r.cols, nil }

func (r *MockRows) Err() error { return nil }

func (r *MockRows) Next() bool {
	r.cursor++
	return r.cursor < len(r.rows)
}

func (r *MockRows) Scan(dest ...interface{}) error {
	if r.cursor < 0 || r.cursor >= len(r.rows) {
		return fmt.Errorf("mock Scan called without Next")
	}
	row := r.rows[r.cursor]
	if len(dest) != len(row) {
		return fmt.Errorf("mock Scan expected %v dest values, got %v", len(row), len(dest))
	}
	for i, d := range dest { // for each scan destination...
		switch v := d.(type) {
		case *interface{}:
			*v = row[i]
		case *string:
			*v = fmt.Sprint(row[i])
		case *int64:
			switch x := row[i].(type) {
			case int64:
				*v = x
			case int:
				*v = int64(x)
			default:
				return fmt.Errorf("mock Scan cannot convert %T to int64", row[i])
			}
		case *int:
			switch x := row[i].(type) {
			case int64:
				*v = int(x)
			case int:
				*v = x
			default:
				return fmt.Errorf("mock Scan cannot convert %T to int", row[i])
			}
		case *float64:
			if x, ok := row[i].(float64); ok {
				*v = x
			} else {
				return fmt.Errorf("mock Scan cannot convert %T to float64", row[i])
			}
		case *bool:
			if x, ok := row[i].(bool); ok {
				*v = x
			} else {
				return fmt.Errorf("mock Scan cannot convert %T to bool", row[i])
			}
		case *time.Time:
			if x, ok := row[i].(time.Time); ok {
				*v = x
			} else {
				return fmt.Errorf("mock Scan cannot convert %T to time.Time", row[i])
			}
		default:
			return fmt.Errorf("mock Scan has no handler for destination type %T", d)
		}
	}
	return nil
}

// MockResult implements interface Result.
type MockResult struct {
	rowsAffected int64
}

func (r *MockResult) LastInsertId() (int64, error) { return 0, nil }

func (r *MockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }
