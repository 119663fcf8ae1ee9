package models

import "time"

// Connection is a registered handle to an external database.
// The raw connection string carries credentials and is never serialized.
type Connection struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"` // "postgres", "mssql", "mysql", "clickhouse"
	Host             string     `json:"host"`
	Port             int        `json:"port"`
	Database         string     `json:"database"`
	Username         string     `json:"username,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
	ConnectionString string     `json:"-"`
}

// DiscoveredDatabase is one database found on a server during discovery,
// already registered as a connection.
type DiscoveredDatabase struct {
	Name       string      `json:"name"`
	Connection *Connection `json:"connection"`
}
