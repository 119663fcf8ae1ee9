package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// ParseConnectionString extracts the non-secret connection details.
// Both URL (postgres://) and keyword/value forms are accepted.
func ParseConnectionString(connString string) (*datasource.ConnectionDetails, error) {
	cfg, err := pgx.ParseConfig(connString)
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

// WithDatabase returns connString pointed at database, keeping credentials and options.
func WithDatabase(connString, database string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return "", fmt.Errorf("%w: expected a postgres:// URL", apperrors.ErrInvalidConnection)
	}

	u.Path = "/" + strings.TrimPrefix(database, "/")
	u.RawPath = ""
	return u.String(), nil
}
