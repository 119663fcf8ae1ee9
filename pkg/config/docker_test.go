package config

import (
	"testing"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host     string
		inDocker bool
		expected string
	}{
		{"mydb.example.com", true, "mydb.example.com"},
		{"192.168.1.100", true, "192.168.1.100"},
		{"localhost", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"localhost", false, "localhost"},
		{"127.0.0.1", false, "127.0.0.1"},
	}

	for _, tt := range tests {
		if got := resolveHost(tt.host, tt.inDocker); got != tt.expected {
			t.Errorf("resolveHost(%q, %v) = %q, want %q", tt.host, tt.inDocker, got, tt.expected)
		}
	}
}

func TestRewriteConnectionURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		inDocker bool
		expected string
	}{
		{
			name:     "not in docker",
			input:    "postgres://u:p@localhost:5432/app",
			inDocker: false,
			expected: "postgres://u:p@localhost:5432/app",
		},
		{
			name:     "loopback with port",
			input:    "postgres://u:p@localhost:5432/app?sslmode=disable",
			inDocker: true,
			expected: "postgres://u:p@host.docker.internal:5432/app?sslmode=disable",
		},
		{
			name:     "loopback ip without port",
			input:    "mysql://root@127.0.0.1/shop",
			inDocker: true,
			expected: "mysql://root@host.docker.internal/shop",
		},
		{
			name:     "remote host untouched",
			input:    "sqlserver://sa:pw@db.internal:1433?database=sales",
			inDocker: true,
			expected: "sqlserver://sa:pw@db.internal:1433?database=sales",
		},
		{
			name:     "unparseable string untouched",
			input:    "host=localhost dbname=app",
			inDocker: true,
			expected: "host=localhost dbname=app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteConnectionURL(tt.input, tt.inDocker); got != tt.expected {
				t.Errorf("rewriteConnectionURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
