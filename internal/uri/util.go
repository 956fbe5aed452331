package uri

import (
	"strings"

	ipv4 "httpconn/internal/ipaddr/ipv4"
	ipv6 "httpconn/internal/ipaddr/ipv6"
	"httpconn/internal/rule"

	"github.com/pkg/errors"
)

// charClass tags each byte with which RFC 3986 2.2/2.3 sets it belongs
// to, so the various component validators below are table lookups
// instead of repeated switch statements.
type charClass uint8

const (
	clsUnreserved charClass = 1 << iota
	clsSubDelim
)

var classOf [256]charClass

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		classOf[c] |= clsUnreserved
	}
	for c := byte('A'); c <= 'Z'; c++ {
		classOf[c] |= clsUnreserved
	}
	for c := byte('0'); c <= '9'; c++ {
		classOf[c] |= clsUnreserved
	}
	for _, c := range []byte("-._~") {
		classOf[c] |= clsUnreserved
	}
	for _, c := range []byte("!$&'()*+,;=") {
		classOf[c] |= clsSubDelim
	}
}

func isUnreserved(c byte) bool { return classOf[c]&clsUnreserved != 0 }
func isSubDelim(c byte) bool   { return classOf[c]&clsSubDelim != 0 }

func containsCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < ' ' || b == 0x7f {
			return true
		}
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.1
func isPercentEncoded(s string) bool {
	if len(s) != 3 {
		return false
	}
	return s[0] == '%' && rule.IsHex(rune(s[1])) && rule.IsHex(rune(s[2]))
}

// isValidComponent scans s for the unreserved/sub-delim/pct-encoded
// alphabet shared by every RFC 3986 component grammar, plus whichever
// extra gen-delims that particular component additionally allows
// (userinfo allows ':', reg-name allows none, path segments allow ':@',
// query/fragment allow ':@/?').
func isValidComponent(s string, extra string) bool {
	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if isUnreserved(c) || isSubDelim(c) || strings.IndexByte(extra, c) >= 0 {
			continue
		}
		if idx+2 < len(s) && isPercentEncoded(s[idx:idx+3]) {
			idx += 2
			continue
		}
		return false
	}
	return true
}

func isValidUserInfo(s string) bool { return isValidComponent(s, ":") }
func isValidRegName(s string) bool  { return isValidComponent(s, "") }
func isQueryFragValid(s string) bool {
	return isValidComponent(s, ":@/?")
}

func assertValidScheme(scheme string) error {
	if len(scheme) == 0 {
		return errors.New("scheme is empty")
	}

	if !rule.IsAlpha(rune(scheme[0])) {
		return errors.New("scheme doesn't start with ALPHA")
	}

	for idx := 1; idx < len(scheme); idx++ {
		c := scheme[idx]
		switch {
		case rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)):
		case c == '+' || c == '-' || c == '.':
		default:
			return errors.New("scheme contains invalid byte")
		}
	}

	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.2.2
func assertValidHost(host string) error {
	if host == "" {
		// Empty reg-name is valid.
		return nil
	}
	if len(host) > 255 {
		return errors.Errorf("host length exceeds limit(255): %d", len(host))
	}

	if host[0] == '[' && host[len(host)-1] == ']' {
		literal := host[1 : len(host)-1]
		if _, err := ipv6.ParseAddr(literal); err == nil {
			return nil
		}
		if isIPvFuture(literal) {
			return nil
		}
		return errors.New("host is expected to be IP Literal, but was malformed")
	}

	if _, err := ipv4.ParseAddr(host); err == nil {
		return nil
	}
	if isValidRegName(host) {
		return nil
	}

	return errors.New("host is neither ipv4 addr nor valid reg-name")
}

func isIPvFuture(s string) bool {
	if len(s) < 4 || s[0] != 'v' || !rule.IsHex(rune(s[1])) || s[2] != '.' {
		return false
	}
	for idx := 3; idx < len(s); idx++ {
		c := s[idx]
		if !(isUnreserved(c) || isSubDelim(c) || c == ':') {
			return false
		}
	}
	return true
}

func assertValidPath(path string, hasAuthority bool, isRelative bool) error {
	if hasAuthority {
		if !(path == "" || path[0] == '/') {
			return errors.New("URI with authority must either be empty or start with '/'")
		}
	} else if strings.HasPrefix(path, "//") {
		return errors.New("URI without authority should not start with '//'")
	}

	segments := strings.Split(path, "/")
	if isRelative && strings.ContainsRune(segments[0], ':') {
		return errors.New("relative URI reference's first segment should not contain ':'")
	}

	for _, segment := range segments {
		if !isValidComponent(segment, ":@") {
			return errors.New("path segment should be pchar")
		}
	}

	return nil
}

// removeDotSegments implements RFC 3986 5.2.4 with a plain string slice
// standing in for the algorithm's output buffer — this parser only ever
// needs a stack of path segments, so it keeps one inline rather than
// reaching for a general-purpose collection type.
func removeDotSegments(path string) string {
	var out []string

	for len(path) > 0 {
		var found bool
		if path, found = strings.CutPrefix(path, "../"); found {
			continue
		}
		if path, found = strings.CutPrefix(path, "./"); found {
			continue
		}

		if path, found = strings.CutPrefix(path, "/./"); found {
			path = "/" + path
			continue
		} else if path == "/." {
			path = "/"
			continue
		}

		if path, found = strings.CutPrefix(path, "/../"); found {
			if n := len(out); n > 0 {
				out = out[:n-1]
			}
			path = "/" + path
			continue
		} else if path == "/.." {
			if n := len(out); n > 0 {
				out = out[:n-1]
			}
			path = "/"
			continue
		}

		if path == ".." || path == "." {
			break
		}

		idx := strings.IndexByte(path[1:], '/') + 1
		if idx == 0 {
			idx = len(path)
		}
		out = append(out, path[:idx])
		path = path[idx:]
	}

	return strings.Join(out, "")
}
