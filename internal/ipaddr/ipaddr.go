// Package ipaddr provides small, dependency-free IPv4/IPv6 address types
// used to tag resolved endpoints with an address family, so a bind address
// can filter the endpoint list by family without going through net.IP
// string parsing at every comparison site.
package ipaddr

import (
	"net"

	"github.com/pkg/errors"

	ipv4 "httpconn/internal/ipaddr/ipv4"
	ipv6 "httpconn/internal/ipaddr/ipv6"
)

// Addr is a family-tagged IP address. Concrete implementations are
// ipv4.Addr and ipv6.Addr.
type Addr interface {
	// Version returns 4 or 6.
	Version() uint
	// ToNetIP converts the address to the standard library representation,
	// for handing off to net.Dialer/net.Resolver.
	ToNetIP() net.IP
	String() string
}

// FromNetIP wraps a net.IP into the matching Addr implementation.
func FromNetIP(ip net.IP) (Addr, error) {
	if v4, err := ipv4.FromNetIP(ip); err == nil {
		return v4, nil
	}
	if v6, err := ipv6.FromNetIP(ip); err == nil {
		return v6, nil
	}
	return nil, errors.Errorf("%s is neither a valid IPv4 nor IPv6 address", ip)
}
