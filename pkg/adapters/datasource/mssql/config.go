package mssql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// normalizeURL rewrites the mssql:// alias to the sqlserver:// scheme the driver expects.
func normalizeURL(connString string) string {
	connString = strings.TrimSpace(connString)
	if len(connString) >= len("mssql://") && strings.EqualFold(connString[:len("mssql://")], "mssql://") {
		return "sqlserver://" + connString[len("mssql://"):]
	}
	return connString
}

// ParseConnectionString extracts host, port, database and user.
// The database comes from the "database" query parameter.
func ParseConnectionString(connString string) (*datasource.ConnectionDetails, error) {
	cfg, err := msdsn.Parse(normalizeURL(connString))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConnection, err)
	}

	port := int(cfg.Port)
	if port == 0 {
		port = DefaultPort()
	}

	return &datasource.ConnectionDetails{
		Host:     cfg.Host,
		Port:     port,
		Database: cfg.Database,
		Username: cfg.User,
	}, nil
}

// WithDatabase sets the database query parameter on a sqlserver:// or mssql:// URL.
func WithDatabase(connString, database string) (string, error) {
	u, err := url.Parse(normalizeURL(connString))
	if err != nil || u.Scheme != "sqlserver" {
		return "", fmt.Errorf("%w: expected a sqlserver:// URL", apperrors.ErrInvalidConnection)
	}

	q := u.Query()
	q.Set("database", database)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
