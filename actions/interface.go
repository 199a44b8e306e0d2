package actions

import (
	"github.com/dentametrics/pmsync/rdbms/shared"
)

type ConnectionLoader interface {
	LoadConnection(connectionName string) (shared.ConnectionDetails, error)
}
