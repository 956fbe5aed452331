// Package ipv4 implements a minimal IPv4 address type.
package ipv4

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Addr is a 4-byte IPv4 address.
type Addr [4]byte

// ParseAddr parses dot-decimal notation, rejecting leading zeroes in any
// octet (e.g. "01" is not accepted, matching the strict reg-name/IPv4
// disambiguation rule a URI host component needs).
func ParseAddr(s string) (Addr, error) {
	digits := strings.Split(s, ".")
	if len(digits) != 4 {
		return Addr{}, errors.New("digits are not properly seperated")
	}

	var addr Addr
	for idx, digit := range digits {
		n, err := strconv.ParseUint(digit, 10, 8)
		if err != nil {
			return Addr{}, errors.Wrap(err, "failed to parse a part into digit")
		}

		if digit[0] == '0' && !(n == 0 && len(digit) == 1) {
			return Addr{}, errors.New("leading zero is not allowed in digit")
		}
		addr[idx] = byte(n)
	}

	return addr, nil
}

// FromNetIP converts a 4-byte net.IP into an Addr.
func FromNetIP(ip net.IP) (Addr, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Addr{}, errors.Errorf("%s is not an IPv4 address", ip)
	}
	var addr Addr
	copy(addr[:], v4)
	return addr, nil
}

func (a Addr) Version() uint { return 4 }

func (a Addr) ToNetIP() net.IP { return net.IPv4(a[0], a[1], a[2], a[3]) }

// ToUint32 packs the address into a big-endian uint32, used by ipv6's
// embedded-IPv4 tail parsing.
func (a Addr) ToUint32() uint32 {
	return uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
}

func (a Addr) String() string {
	return strconv.Itoa(int(a[0])) + "." + strconv.Itoa(int(a[1])) + "." +
		strconv.Itoa(int(a[2])) + "." + strconv.Itoa(int(a[3]))
}
