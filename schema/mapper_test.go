package schema

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestMysqlToPostgresDataTypeMapper(t *testing.T) {
	m := NewMysqlToPostgresDataTypeMapper(logrus.New())
	tests := []struct {
		name     string
		col      Column
		expected string
	}{
		{"varchar keeps its length", Column{Name: "LName", DataType: "varchar", ColumnType: "varchar(100)", Length: 100}, "varchar(100)"},
		{"varchar with no length gets the default", Column{Name: "LName", DataType: "varchar", ColumnType: "varchar"}, "varchar(255)"},
		{"tinyint(1) is a boolean", Column{Name: "IsHidden", DataType: "tinyint", ColumnType: "tinyint(1)"}, "boolean"},
		{"wide tinyint is a smallint", Column{Name: "Status", DataType: "tinyint", ColumnType: "tinyint(3) unsigned"}, "smallint"},
		{"decimal keeps precision and scale", Column{Name: "Fee", DataType: "decimal", ColumnType: "decimal(12,4)", Precision: 12, Scale: 4}, "numeric(12,4)"},
		{"decimal with no precision gets the default", Column{Name: "Fee", DataType: "decimal", ColumnType: "decimal"}, "numeric(10,2)"},
		{"datetime becomes timestamp", Column{Name: "DateTStamp", DataType: "datetime", ColumnType: "datetime"}, "timestamp"},
		{"longtext becomes text", Column{Name: "Note", DataType: "longtext", ColumnType: "longtext"}, "text"},
		{"enum becomes unbounded text", Column{Name: "Gender", DataType: "enum", ColumnType: "enum('M','F','U')"}, "text"},
		{"set becomes unbounded text", Column{Name: "Days", DataType: "set", ColumnType: "set('Mon','Tue')"}, "text"},
		{"blob becomes bytea", Column{Name: "Thumbnail", DataType: "mediumblob", ColumnType: "mediumblob"}, "bytea"},
		{"json becomes jsonb", Column{Name: "Preferences", DataType: "json", ColumnType: "json"}, "jsonb"},
		{"unknown types degrade to text", Column{Name: "Shape", DataType: "geometry", ColumnType: "geometry"}, "text"},
	}
	for _, tt := range tests {
		if got := m.Map(&tt.col); got != tt.expected {
			t.Errorf("%v: expected %q, got %q", tt.name, tt.expected, got)
		}
	}
}

func TestColumnDisplayWidth(t *testing.T) {
	c := Column{ColumnType: "tinyint(1)"}
	if c.DisplayWidth() != 1 {
		t.Fatal("expected display width 1, got: ", c.DisplayWidth())
	}
	c = Column{ColumnType: "datetime"}
	if c.DisplayWidth() != 0 {
		t.Fatal("expected display width 0, got: ", c.DisplayWidth())
	}
}
