// Package ipv6 implements a minimal IPv6 address type.
package ipv6

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	ipv4 "httpconn/internal/ipaddr/ipv4"

	"github.com/pkg/errors"
)

// Addr is a 16-byte IPv6 address.
type Addr [16]byte

// ParseAddr parses colon-hex notation, including "::" compression and a
// trailing embedded IPv4 tail.
func ParseAddr(s string) (Addr, error) {
	before, after, found := strings.Cut(s, "::")
	var addr Addr

	if !found {
		addrBytes, err := parseAddrFrag(before, true)
		if err != nil {
			return Addr{}, err
		}
		if len(addrBytes) != 16 {
			return Addr{}, errors.New("length of address is not 128bit")
		}
		copy(addr[:], addrBytes)
		return addr, nil
	}

	frag1, err1 := parseAddrFrag(before, false)
	frag2, err2 := parseAddrFrag(after, true)
	if err1 != nil || err2 != nil {
		if err1 != nil {
			return Addr{}, errors.Wrap(err1, "parsing fragment before ::")
		}
		return Addr{}, errors.Wrap(err2, "parsing fragment after ::")
	}

	// "::" stands for at least one zero group, so at most 14 bytes remain.
	if len(frag1)+len(frag2) > 14 {
		return Addr{}, errors.New("ipv6 address too long")
	}

	copy(addr[:len(frag1)], frag1)
	copy(addr[len(addr)-len(frag2):], frag2)

	return addr, nil
}

func parseAddrFrag(s string, isLast bool) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}

	h16s := strings.Split(s, ":")

	addr := make([]byte, 0, len(h16s)*2+2)
	for idx, h16 := range h16s {
		if h16 == "" {
			return nil, errors.New("invalid use of colon seperator")
		}

		n, err := strconv.ParseUint(h16, 16, 16)
		if err != nil {
			if !isLast || idx != len(h16s)-1 {
				return nil, errors.Wrap(err, "failed to parse hex")
			}
			addrV4, err := ipv4.ParseAddr(h16)
			if err != nil {
				return nil, errors.Wrap(err,
					"non-hex item found on the last index, but wasn't ipv4 address",
				)
			}
			// An embedded IPv4 tail fills two 16-bit groups.
			v4 := addrV4.ToUint32()
			addr = append(addr, byte(v4>>24), byte(v4>>16), byte(v4>>8), byte(v4))
			continue
		}

		addr = append(addr, byte(n>>8), byte(n&0xFF))
	}

	return addr, nil
}

// FromNetIP converts a 16-byte net.IP into an Addr.
func FromNetIP(ip net.IP) (Addr, error) {
	v6 := ip.To16()
	if v6 == nil || ip.To4() != nil {
		return Addr{}, errors.Errorf("%s is not an IPv6 address", ip)
	}
	var addr Addr
	copy(addr[:], v6)
	return addr, nil
}

func (a Addr) Version() uint { return 6 }

func (a Addr) ToNetIP() net.IP { return net.IP(a[:]) }

func (a Addr) String() string {
	parts := make([]string, 8)
	for i := 0; i < 8; i++ {
		parts[i] = fmt.Sprintf("%x", uint16(a[i*2])<<8|uint16(a[i*2+1]))
	}
	return strings.Join(parts, ":")
}
