package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/schema"
)

// columnKind drives the per-value coercion applied while copying.
type columnKind int

const (
	kindPassthrough columnKind = iota
	kindBoolean
	kindDateTime
	kindNumeric
	kindText
	kindBinary
)

// rowCoercer rewrites source values that have no direct representation in the
// warehouse: zero dates become nulls, tinyint(1) becomes boolean and text
// arrives from the driver as []byte.
type rowCoercer struct {
	kinds []columnKind
}

func newRowCoercer(def *schema.TableDefinition, header []string) *rowCoercer {
	kinds := make([]columnKind, len(header))
	for i, name := range header {
		c := def.ColumnByName(name)
		if c == nil {
			continue
		}
		switch c.DataType {
		case "tinyint":
			if c.DisplayWidth() == 1 {
				kinds[i] = kindBoolean
			}
		case "bit":
			kinds[i] = kindBoolean
		case "date", "datetime", "timestamp":
			kinds[i] = kindDateTime
		case "decimal", "numeric", "float", "double":
			kinds[i] = kindNumeric
		case "char", "varchar", "tinytext", "text", "mediumtext", "longtext", "enum", "set", "json", "time":
			kinds[i] = kindText
		case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
			kinds[i] = kindBinary
		}
	}
	return &rowCoercer{kinds: kinds}
}

// coerce rewrites the row in place and returns it.
func (rc *rowCoercer) coerce(row []interface{}) []interface{} {
	for i, v := range row {
		if v == nil || i >= len(rc.kinds) {
			continue
		}
		switch rc.kinds[i] {
		case kindBoolean:
			row[i] = coerceBool(v)
		case kindDateTime:
			row[i] = coerceDateTime(v)
		case kindNumeric:
			row[i] = coerceNumeric(v)
		case kindText:
			if b, ok := v.([]byte); ok { // the mysql driver returns text as []byte.
				row[i] = string(b)
			}
		}
	}
	return row
}

// coerceBool maps MySQL's tinyint(1) tri-state to a nullable boolean. Nulls
// never reach here so only 0 and non-zero remain.
func coerceBool(v interface{}) interface{} {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case []byte:
		s := string(x)
		if len(s) == 0 {
			return nil
		}
		// bit(1) arrives as a raw byte, tinyint as its decimal text.
		return s != "0" && s[0] != 0x00
	case string:
		return x != "0" && x != ""
	}
	return v
}

// coerceNumeric parses numeric text into a number; unparseable values become
// null rather than failing the batch.
func coerceNumeric(v interface{}) interface{} {
	var s string
	switch x := v.(type) {
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return f
}

// coerceDateTime maps sentinel dates that predate the warehouse's range to null.
func coerceDateTime(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		if x.Year() <= 1 { // zero dates parse to year 0 or 1.
			return nil
		}
		return x
	case []byte:
		return coerceDateTimeText(string(x))
	case string:
		return coerceDateTimeText(x)
	}
	return v
}

func coerceDateTimeText(s string) interface{} {
	switch {
	case s == "",
		strings.HasPrefix(s, constants.ZeroDate),
		strings.HasPrefix(s, constants.MinDate):
		return nil
	}
	return s
}
