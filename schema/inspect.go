package schema

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

// Column describes one column of a source table as reported by the database
// catalog.
type Column struct {
	Name            string
	DataType        string // base type, e.g. "varchar"
	ColumnType      string // full declared type, e.g. "tinyint(1) unsigned"
	Length          int
	Precision       int
	Scale           int
	Nullable        bool
	IsPrimaryKey    bool
	IsAutoIncrement bool
}

// TableDefinition is the catalog view of one source table.
type TableDefinition struct {
	Name    string
	Columns []Column
}

// TableNotFoundError denotes a configured table missing from the source catalog.
type TableNotFoundError struct {
	Table string
}

func (e TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found in source database", e.Table)
}

var reDisplayWidth = regexp.MustCompile(`\((\d+)\)`)

// DisplayWidth returns the declared display width from the full column type,
// e.g. 1 for "tinyint(1)". Returns 0 when none was declared.
func (c *Column) DisplayWidth() int {
	m := reDisplayWidth.FindStringSubmatch(c.ColumnType)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// PrimaryKey returns the names of the table's primary key columns in catalog
// order.
func (t *TableDefinition) PrimaryKey() []string {
	var keys []string
	for i := range t.Columns {
		if t.Columns[i].IsPrimaryKey {
			keys = append(keys, t.Columns[i].Name)
		}
	}
	return keys
}

// ColumnNames returns all column names in catalog order.
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// ColumnByName returns the named column or nil.
func (t *TableDefinition) ColumnByName(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

const sqlSourceColumns = `select column_name, data_type, column_type,
	coalesce(character_maximum_length, 0),
	coalesce(numeric_precision, 0), coalesce(numeric_scale, 0),
	is_nullable, column_key, extra
	from information_schema.columns
	where table_schema = database()
	and table_name = ?
	order by ordinal_position`

// GetSourceTableDefinition reads the column catalog for tableName from the
// source connection.
func GetSourceTableDefinition(ctx context.Context, log logger.Logger, db shared.Connector, tableName string) (*TableDefinition, error) {
	rows, err := db.QueryContext(ctx, sqlSourceColumns, tableName)
	if err != nil {
		return nil, errors.Wrapf(err, "error fetching catalog for table %v", tableName)
	}
	defer func() {
		_ = rows.Close()
	}()
	def := &TableDefinition{Name: tableName}
	for rows.Next() {
		var name, dataType, columnType, nullable, columnKey, extra interface{}
		var length, precision, scale interface{}
		err = rows.Scan(&name, &dataType, &columnType, &length, &precision, &scale, &nullable, &columnKey, &extra)
		if err != nil {
			return nil, errors.Wrapf(err, "error scanning catalog row for table %v", tableName)
		}
		def.Columns = append(def.Columns, Column{
			Name:            catalogString(name),
			DataType:        strings.ToLower(catalogString(dataType)),
			ColumnType:      strings.ToLower(catalogString(columnType)),
			Length:          catalogInt(length),
			Precision:       catalogInt(precision),
			Scale:           catalogInt(scale),
			Nullable:        strings.EqualFold(catalogString(nullable), "YES"),
			IsPrimaryKey:    strings.EqualFold(catalogString(columnKey), "PRI"),
			IsAutoIncrement: strings.Contains(strings.ToLower(catalogString(extra)), "auto_increment"),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading catalog for table %v", tableName)
	}
	if len(def.Columns) == 0 { // if the catalog had nothing for this table...
		return nil, TableNotFoundError{Table: tableName}
	}
	log.Debug("table ", tableName, " has ", len(def.Columns), " columns with primary key ", def.PrimaryKey())
	return def, nil
}

// catalogString converts a dynamically scanned catalog value to a string.
// Drivers return []byte for text columns.
func catalogString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// catalogInt converts a dynamically scanned catalog value to an int.
func catalogInt(v interface{}) int {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return int(x)
	case int:
		return x
	case uint64:
		return int(x)
	case float64:
		return int(x)
	case []byte:
		n, _ := strconv.Atoi(string(x))
		return n
	case string:
		n, _ := strconv.Atoi(x)
		return n
	default:
		return 0
	}
}
