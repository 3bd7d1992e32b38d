// Package netutil contains small net.Addr helpers.
package netutil

import (
	"net"
	"strconv"
)

// Host returns the host part of the address (without port).
func Host(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Port returns the port of the address or 0 if it has none.
func Port(addr net.Addr) uint16 {
	if addr == nil {
		return 0
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return uint16(p)
}
