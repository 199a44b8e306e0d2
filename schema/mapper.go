package schema

import (
	"strconv"
	"strings"

	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
)

// Mapper converts a source column definition into a target data type ready for
// use in DDL.
type Mapper interface {
	Map(col *Column) string
}

// NewMysqlToPostgresDataTypeMapper returns an instance of dataTypeMap{}
// which implements interface Mapper.
func NewMysqlToPostgresDataTypeMapper(log logger.Logger) Mapper {
	return newDataTypeMapper(log, MysqlToPostgresDataTypeMapping)
}

// sizerFuncT converts a column's length, precision and scale into a type suffix
// string ready for use in CREATE TABLE DDL.
type sizerFuncT func(col *Column) string

type dataTypeLink struct {
	SourceDataType string
	TargetDataType string
	SizerFunc      sizerFuncT
}

// dataTypeMap implements the Mapper interface.
type dataTypeMap struct {
	log       logger.Logger
	mapTypes  map[string]string
	mapSizers map[string]sizerFuncT
}

func newDataTypeMapper(log logger.Logger, types []dataTypeLink) dataTypeMap {
	dtm := dataTypeMap{log: log}
	dtm.mapTypes = make(map[string]string)
	dtm.mapSizers = make(map[string]sizerFuncT)
	for _, row := range types { // for each data type link...
		dtm.mapTypes[row.SourceDataType] = row.TargetDataType
		dtm.mapSizers[row.SourceDataType] = row.SizerFunc
	}
	return dtm
}

// Map converts the column's data type to lower case and uses it to look up the
// target type. Unknown source types degrade to text so that one exotic column
// cannot stop a whole table from replicating.
func (o dataTypeMap) Map(col *Column) string {
	key := strings.ToLower(col.DataType)
	if key == "tinyint" && col.DisplayWidth() == 1 { // if this is MySQL's boolean idiom...
		return "boolean"
	}
	v, ok := o.mapTypes[key]
	if !ok {
		o.log.Warn("unsupported data type ", col.DataType, " for column ", col.Name, ": using text")
		return "text"
	}
	fn := o.mapSizers[key]
	if fn == nil {
		return v
	}
	return v + fn(col)
}

// MysqlToPostgresDataTypeMapping contains a mapping of MySQL to PostgreSQL data types.
var MysqlToPostgresDataTypeMapping = []dataTypeLink{
	{SourceDataType: "tinyint", TargetDataType: "smallint", SizerFunc: sizeBlank},
	{SourceDataType: "smallint", TargetDataType: "smallint", SizerFunc: sizeBlank},
	{SourceDataType: "mediumint", TargetDataType: "integer", SizerFunc: sizeBlank},
	{SourceDataType: "int", TargetDataType: "integer", SizerFunc: sizeBlank},
	{SourceDataType: "integer", TargetDataType: "integer", SizerFunc: sizeBlank},
	{SourceDataType: "bigint", TargetDataType: "bigint", SizerFunc: sizeBlank},
	{SourceDataType: "decimal", TargetDataType: "numeric", SizerFunc: sizePrecisionScale},
	{SourceDataType: "numeric", TargetDataType: "numeric", SizerFunc: sizePrecisionScale},
	{SourceDataType: "float", TargetDataType: "real", SizerFunc: sizeBlank},
	{SourceDataType: "double", TargetDataType: "double precision", SizerFunc: sizeBlank},
	{SourceDataType: "bit", TargetDataType: "boolean", SizerFunc: sizeBlank},
	{SourceDataType: "date", TargetDataType: "date", SizerFunc: sizeBlank},
	{SourceDataType: "datetime", TargetDataType: "timestamp", SizerFunc: sizeBlank},
	{SourceDataType: "timestamp", TargetDataType: "timestamp", SizerFunc: sizeBlank},
	{SourceDataType: "time", TargetDataType: "time", SizerFunc: sizeBlank},
	{SourceDataType: "year", TargetDataType: "smallint", SizerFunc: sizeBlank},
	{SourceDataType: "char", TargetDataType: "char", SizerFunc: sizeCharLen},
	{SourceDataType: "varchar", TargetDataType: "varchar", SizerFunc: sizeCharLen},
	{SourceDataType: "tinytext", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "text", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "mediumtext", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "longtext", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "enum", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "set", TargetDataType: "text", SizerFunc: sizeBlank},
	{SourceDataType: "binary", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "varbinary", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "tinyblob", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "blob", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "mediumblob", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "longblob", TargetDataType: "bytea", SizerFunc: sizeBlank},
	{SourceDataType: "json", TargetDataType: "jsonb", SizerFunc: sizeBlank},
}

// SIZER FUNCTIONS.

func sizeBlank(col *Column) string {
	return ""
}

func sizeCharLen(col *Column) string {
	if col.Length > 0 { // if the declared length is usable...
		return "(" + strconv.Itoa(col.Length) + ")"
	}
	return "(" + strconv.Itoa(constants.VarcharLenDefault) + ")"
}

func sizePrecisionScale(col *Column) string {
	if col.Precision > 0 {
		return "(" + strconv.Itoa(col.Precision) + "," + strconv.Itoa(col.Scale) + ")"
	}
	return constants.NumericPrecisionDefault
}
