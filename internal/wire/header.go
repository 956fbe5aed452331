package wire

import "strings"

// HeaderGet returns the first header value matching name, case-insensitive,
// per RFC 9110 5.1.
func HeaderGet(headers []Field, name string) (string, bool) {
	for _, f := range headers {
		if f.NameEqual(name) {
			return string(f.Value), true
		}
	}
	return "", false
}

// HeaderValues returns every header value matching name, in order, for
// list-valued fields such as Transfer-Encoding.
func HeaderValues(headers []Field, name string) []string {
	var out []string
	for _, f := range headers {
		if f.NameEqual(name) {
			out = append(out, string(f.Value))
		}
	}
	return out
}

// HeaderHasToken reports whether the comma-separated field named name
// contains token, case-insensitively — used for Connection/Transfer-Encoding
// token lists.
func HeaderHasToken(headers []Field, name, token string) bool {
	for _, v := range HeaderValues(headers, name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
