package rdbms

import (
	"fmt"
	"time"

	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms/shared"
	"github.com/xo/dburl"
)

// OpenDbConnection opens a database connection using the supplied ConnectionDetails struct in c.
func OpenDbConnection(log logger.Logger, c shared.ConnectionDetails) (db shared.Connector, err error) {
	log.Debug("opening connection type ", c.Type, " with logicalName ", c.LogicalName) // don't log password details in c.Data!
	switch c.Type {
	case constants.ConnectionTypeMysql:
		db, err = newConnectionWithDsn(log, &c, nil)
	case constants.ConnectionTypePostgres:
		db, err = newConnectionWithDsn(log, &c, &shared.DmlGeneratorTxtBatch{})
	case constants.ConnectionTypeMock:
		db, _ = shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	default: // else we have an unsupported database...
		err = fmt.Errorf("unsupported database type, %q", c.Type)
	}
	return
}

// WithConnection opens a connection for c, runs fn against it and closes the
// connection on every exit path.
func WithConnection(log logger.Logger, c shared.ConnectionDetails, fn func(db shared.Connector) error) error {
	db, err := OpenDbConnection(log, c)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// newConnectionWithDsn opens a connection via the Go SQL driver registered for the
// scheme found in the connection's DSN. The DML generator may be nil for source
// connections that are only ever read from.
func newConnectionWithDsn(log logger.Logger, c *shared.ConnectionDetails, dml shared.DmlGenerator) (shared.Connector, error) {
	log.Info("Opening database connection: ", c)
	dsn, err := c.Dsn()
	if err != nil {
		return nil, err
	}
	u, err := dburl.Parse(dsn)
	if err != nil { // if the DSN could not be parsed...
		return nil, fmt.Errorf("error parsing DSN for connection %q: %w", c.LogicalName, err)
	}
	// Create the new Connector.
	conn := &shared.DbConnection{
		Dml:    dml,
		DbType: c.Type,
	}
	// Open the connection.
	conn.DbSql, err = sql.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, err
	}
	conn.DbSql.SetMaxOpenConns(constants.ConnectionMaxOpenDefault)
	conn.DbSql.SetConnMaxLifetime(time.Duration(constants.ConnectionMaxLifetimeSecDefault) * time.Second)
	// Test the connection.
	err = conn.DbSql.Ping()
	if err != nil {
		return nil, err
	}
	log.Info("Successful connection to: ", c)
	return conn, nil
}
