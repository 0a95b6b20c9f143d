// Package utils contains some common utilities used by all other packages.
package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const defaultPort = 3306

// SplitHostPort splits "host[:port]" and fills in the MySQL default port.
// IPv6 addresses carry a port only in brackets, so a bare "::1" is a host.
func SplitHostPort(addr string) (string, int, error) {
	if !strings.Contains(addr, ":") || net.ParseIP(addr) != nil {
		return addr, defaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}
