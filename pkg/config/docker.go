package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

const dockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the gateway is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running in Docker,
// so dashboard users can point at databases on the host machine.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

// RewriteConnectionURL applies ResolveHostForDocker to the host of a URL-form connection string.
// Strings that do not parse as URLs are returned unchanged.
func RewriteConnectionURL(connString string) string {
	return rewriteConnectionURL(connString, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return dockerHostGateway
	}
	return host
}

func rewriteConnectionURL(connString string, inDocker bool) string {
	if !inDocker {
		return connString
	}

	u, err := url.Parse(connString)
	if err != nil || u.Host == "" {
		return connString
	}

	host, port := u.Hostname(), u.Port()
	resolved := resolveHost(host, true)
	if resolved == host {
		return connString
	}

	if port != "" {
		u.Host = net.JoinHostPort(resolved, port)
	} else {
		u.Host = resolved
	}
	return u.String()
}
