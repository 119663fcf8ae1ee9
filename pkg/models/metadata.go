package models

import (
	"strings"
	"time"
)

// DatabaseMetadata describes every user table reachable through a connection.
type DatabaseMetadata struct {
	ConnectionID string          `json:"connectionId"`
	Database     string          `json:"database"`
	Type         string          `json:"type"`
	Tables       []TableMetadata `json:"tables"`
	RetrievedAt  time.Time       `json:"retrievedAt"`
}

// TableMetadata describes one table.
type TableMetadata struct {
	Schema      string           `json:"schema,omitempty"`
	Name        string           `json:"name"`
	RowCount    int64            `json:"rowCount"`
	Columns     []ColumnMetadata `json:"columns"`
	ForeignKeys []ForeignKey     `json:"foreignKeys,omitempty"`
}

// QualifiedName returns schema.name, or name alone when the schema is empty.
func (t *TableMetadata) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnMetadata describes one column of a table.
type ColumnMetadata struct {
	Name            string  `json:"name"`
	DataType        string  `json:"dataType"`
	IsNullable      bool    `json:"isNullable"`
	IsPrimaryKey    bool    `json:"isPrimaryKey"`
	IsUnique        bool    `json:"isUnique"`
	OrdinalPosition int     `json:"ordinalPosition"`
	DefaultValue    *string `json:"defaultValue,omitempty"`
}

// ForeignKey is a single-column reference from this table to another.
type ForeignKey struct {
	Name             string `json:"name"`
	Column           string `json:"column"`
	ReferencedSchema string `json:"referencedSchema,omitempty"`
	ReferencedTable  string `json:"referencedTable"`
	ReferencedColumn string `json:"referencedColumn"`
}

// FindTable looks a table up by bare or schema-qualified name.
// Bare names match case-insensitively in any schema.
func (m *DatabaseMetadata) FindTable(name string) *TableMetadata {
	for i := range m.Tables {
		t := &m.Tables[i]
		if t.QualifiedName() == name || t.Name == name {
			return t
		}
	}
	for i := range m.Tables {
		t := &m.Tables[i]
		if strings.EqualFold(t.QualifiedName(), name) || strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}
