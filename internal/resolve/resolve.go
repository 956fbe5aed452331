// Package resolve implements the driver's Resolver external interface:
// hostname to address-list lookup, pluggable for tests the way the
// teacher's application/util/domain.Lookuper is.
package resolve

import (
	"context"
	"maps"
	"net"

	"httpconn/internal/ipaddr"

	"github.com/pkg/errors"
)

var ErrHostNotFound = errors.New("host not found")

// Resolver looks up the addresses a hostname resolves to.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]ipaddr.Addr, error)
}

// NetResolver is the default Resolver, backed by *net.Resolver.
type NetResolver struct {
	R *net.Resolver
}

func NewNetResolver() *NetResolver { return &NetResolver{R: net.DefaultResolver} }

func (n *NetResolver) Resolve(ctx context.Context, host string) ([]ipaddr.Addr, error) {
	r := n.R
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, errors.Wrap(err, "looking up host")
	}

	out := make([]ipaddr.Addr, 0, len(ips))
	for _, ip := range ips {
		addr, err := ipaddr.FromNetIP(ip)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}

	if len(out) == 0 {
		return nil, ErrHostNotFound
	}

	return out, nil
}

// MapResolver is a fixed-table Resolver for tests.
type MapResolver struct {
	set map[string][]ipaddr.Addr
}

var _ Resolver = (*MapResolver)(nil)

func NewMapResolver(set map[string][]ipaddr.Addr) *MapResolver {
	if set == nil {
		set = make(map[string][]ipaddr.Addr)
	}
	return &MapResolver{set: maps.Clone(set)}
}

func (m *MapResolver) Resolve(ctx context.Context, host string) ([]ipaddr.Addr, error) {
	addrs, ok := m.set[host]
	if !ok {
		return nil, ErrHostNotFound
	}
	return addrs, nil
}

func (m *MapResolver) Set(host string, addrs []ipaddr.Addr) {
	if len(addrs) == 0 {
		return
	}
	m.set[host] = addrs
}

func (m *MapResolver) Del(host string) { delete(m.set, host) }
