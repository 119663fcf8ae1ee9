package clickhouse

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/config"
)

// DefaultPort returns the native protocol port.
func DefaultPort() int {
	return 9000
}

func parseOptions(connString string) (*ch.Options, error) {
	opts, err := ch.ParseDSN(strings.TrimSpace(connString))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConnection, err)
	}
	if len(opts.Addr) == 0 {
		return nil, fmt.Errorf("%w: no host in connection string", apperrors.ErrInvalidConnection)
	}
	return opts, nil
}

// ParseConnectionString extracts the first host, its port, database and user.
func ParseConnectionString(connString string) (*datasource.ConnectionDetails, error) {
	opts, err := parseOptions(connString)
	if err != nil {
		return nil, err
	}

	host, port := opts.Addr[0], DefaultPort()
	if h, p, err := net.SplitHostPort(opts.Addr[0]); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	return &datasource.ConnectionDetails{
		Host:     host,
		Port:     port,
		Database: opts.Auth.Database,
		Username: opts.Auth.Username,
	}, nil
}

// WithDatabase replaces the URL path, which ClickHouse DSNs use for the database.
func WithDatabase(connString, database string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: expected a clickhouse:// URL", apperrors.ErrInvalidConnection)
	}
	u.Path = "/" + database
	u.RawPath = ""
	return u.String(), nil
}

// OpenPool creates a pinged database/sql pool over the native protocol.
func OpenPool(ctx context.Context, connString string, poolOpts datasource.PoolOptions) (datasource.PoolConnector, error) {
	opts, err := parseOptions(config.RewriteConnectionURL(connString))
	if err != nil {
		return nil, err
	}
	return datasource.OpenSQLDB(ctx, typeName, ch.Connector(opts), poolOpts)
}
