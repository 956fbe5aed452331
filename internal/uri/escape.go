package uri

import (
	"strings"

	"github.com/pkg/errors"
)

type encodeMode uint

const (
	encodePath encodeMode = 1 + iota
	encodeHost
	encodeUserInfo
	encodeQuery
	encodeFragment
)

const hexDigits = "0123456789ABCDEF"

var hexValue [256]byte

func init() {
	for i := byte(0); i < 10; i++ {
		hexValue['0'+i] = i
	}
	for i := byte(0); i < 6; i++ {
		hexValue['a'+i] = i + 10
		hexValue['A'+i] = i + 10
	}
}

func writeEscaped(b *strings.Builder, c byte) {
	b.WriteByte('%')
	b.WriteByte(hexDigits[c>>4])
	b.WriteByte(hexDigits[c&0xF])
}

// allowedExtra names, per encodeMode, the reserved bytes that mode's RFC
// 3986 grammar leaves unescaped on top of the always-safe unreserved set
// (userinfo 3.2.1, host 3.2.2, path 3.3, query/fragment 3.4/3.5).
var allowedExtra = map[encodeMode]string{
	encodeUserInfo: "!$&'()*+,;=:",
	encodeHost:     "!$&'()*+,;=:[]",
	encodePath:     "!$&'()*+,;=:@/",
	encodeQuery:    "!$&'()*+,;=:@/?",
	encodeFragment: "!$&'()*+,;=:@/?",
}

func escape(s string, mode encodeMode) string {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if shouldEscape(c, mode) {
			writeEscaped(b, c)
		} else {
			b.WriteByte(c)
		}
	}

	return b.String()
}

func unescape(s string) (string, error) {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if c == '%' {
			if idx+2 >= len(s) || !isPercentEncoded(s[idx:idx+3]) {
				bad := s[idx:min(len(s), idx+3)]
				return "", errors.Errorf("percent encoding not properly applied: %q", bad)
			}
			b.WriteByte(hexValue[s[idx+1]]<<4 | hexValue[s[idx+2]])
			idx += 2
			continue
		}
		b.WriteByte(c)
	}

	return b.String(), nil
}

func shouldEscape(c byte, mode encodeMode) bool {
	if isUnreserved(c) {
		return false
	}
	return strings.IndexByte(allowedExtra[mode], c) < 0
}
