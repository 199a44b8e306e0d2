package shared

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/xo/dburl"

	"github.com/dentametrics/pmsync/constants"
)

// ConnectionDetails is intended to hold credentials for a logical database connection.
// Data carries either a full "dsn" in URL form, or the parts used to build one:
// host, port, database, user, password and optional "params" query string.
type ConnectionDetails struct {
	Type        string            `json:"type" errorTxt:"database type" mandatory:"yes" yaml:"type"`
	LogicalName string            `json:"logicalName" errorTxt:"database logical name" mandatory:"yes" yaml:"logicalName"`
	Data        map[string]string `json:"data" yaml:"data"`
}

// defaultDsnParams are appended to DSNs built from parts per database type.
// parseTime makes the mysql driver produce time.Time values so the coercion
// pass can inspect them.
var defaultDsnParams = map[string]string{
	constants.ConnectionTypeMysql:    "parseTime=true&loc=UTC",
	constants.ConnectionTypePostgres: "sslmode=disable",
}

// SetData stores a key in the connection's Data map, creating the map when
// the connection came from config with no data block.
func (c *ConnectionDetails) SetData(key, value string) {
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	c.Data[key] = value
}

// Dsn returns the connection's DSN in URL form, building it from parts when
// an explicit "dsn" key is not present.
func (c ConnectionDetails) Dsn() (string, error) {
	if v, ok := c.Data["dsn"]; ok && v != "" { // if there's an explicit DSN...
		return v, nil
	}
	host := c.Data["host"]
	database := c.Data["database"]
	if host == "" || database == "" {
		return "", errors.Errorf("connection %q is missing host or database", c.LogicalName)
	}
	port := c.Data["port"]
	if port != "" {
		port = ":" + port
	}
	user := url.QueryEscape(c.Data["user"])
	if pass := c.Data["password"]; pass != "" {
		user = user + ":" + url.QueryEscape(pass)
	}
	params := c.Data["params"]
	if params == "" {
		params = defaultDsnParams[c.Type]
	}
	if params != "" {
		params = "?" + params
	}
	return fmt.Sprintf("%v://%v@%v%v/%v%v", c.Type, user, host, port, database, params), nil
}

// String redacts passwords and pretty-prints the contents of ConnectionDetails.
func (c ConnectionDetails) String() string {
	x := make([]string, 0, len(c.Data)+1)
	x = append(x, fmt.Sprintf("  type = %v", c.Type))
	if dsn, err := c.Dsn(); err == nil { // if we have a DSN to show...
		if u, err := dburl.Parse(dsn); err == nil {
			x = append(x, fmt.Sprintf("  dsn = %v", u.Redacted()))
		}
	} else { // else show the parts with the password masked...
		for k, v := range c.Data {
			if k == "password" {
				v = "xxxxx"
			}
			x = append(x, fmt.Sprintf("  %v = %v", k, v))
		}
	}
	return strings.Join(x, "\n")
}
