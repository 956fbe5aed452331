package uri

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// URI is a parsed RFC 3986 URI-reference. A manually constructed URI
// should not have escaped characters; String escapes on output.
type URI struct {
	Scheme    string
	Authority *Authority
	Path      string
	Query     *string
	Fragment  *string
}

// IsRelativeRef reports whether u has no scheme.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.2
func (u *URI) IsRelativeRef() bool {
	return u.Scheme == ""
}

// IsAbsoluteURI reports whether u has a scheme and no fragment.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.3
func (u *URI) IsAbsoluteURI() bool {
	return u.Scheme != "" && u.Fragment == nil
}

func (u *URI) IsValid() error {
	if u.Scheme != "" {
		if err := assertValidScheme(u.Scheme); err != nil {
			return errors.Wrap(err, "invalid scheme")
		}
	}

	if a := u.Authority; a != nil {
		if !isValidUserInfo(a.UserInfo) {
			return errors.New("invalid userinfo")
		}
		if err := assertValidHost(a.Host); err != nil {
			return errors.Wrap(err, "invalid host")
		}
	}

	if err := assertValidPath(u.Path, u.Authority != nil, u.IsRelativeRef()); err != nil {
		return errors.Wrap(err, "invalid path")
	}

	for name, comp := range map[string]*string{"query": u.Query, "fragment": u.Fragment} {
		if comp != nil && !isQueryFragValid(*comp) {
			return errors.Errorf("invalid %s", name)
		}
	}

	return nil
}

// String composes the URI back to text.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.3
func (u *URI) String() string {
	b := new(strings.Builder)
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}

	if u.Authority != nil {
		b.WriteString("//")
		if u.Authority.UserInfo != "" {
			b.WriteString(escape(u.Authority.UserInfo, encodeUserInfo))
			b.WriteByte('@')
		}
		b.WriteString(escape(u.Authority.Host, encodeHost))
		if u.Authority.Port >= 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(u.Authority.Port))
		}
	}

	b.WriteString(escape(u.Path, encodePath))

	if u.Query != nil {
		b.WriteByte('?')
		b.WriteString(escape(*u.Query, encodeQuery))
	}

	if u.Fragment != nil {
		b.WriteByte('#')
		b.WriteString(escape(*u.Fragment, encodeFragment))
	}

	return b.String()
}

type Authority struct {
	UserInfo string
	Host     string

	// Port is -1 when the URI omits it, matching the sentinel Split and
	// DefaultPort already use for "no port here" downstream.
	Port int
}

// Normalize performs syntax-based normalization on uri.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-6.2.2
func Normalize(uri URI) (URI, error) {
	if err := uri.IsValid(); err != nil {
		return URI{}, errors.Wrap(err, "URI is not valid")
	}

	uri.Scheme = strings.ToLower(uri.Scheme)
	uri.Path = removeDotSegments(uri.Path)

	unescapeInto := func(s *string, name string) error {
		v, err := unescape(*s)
		if err != nil {
			return errors.Wrapf(err, "unescaping %s", name)
		}
		*s = v
		return nil
	}

	if err := unescapeInto(&uri.Path, "path"); err != nil {
		return URI{}, err
	}

	if a := uri.Authority; a != nil {
		a.Host = strings.ToLower(a.Host)
		if err := unescapeInto(&a.UserInfo, "userinfo"); err != nil {
			return URI{}, err
		}
		if err := unescapeInto(&a.Host, "host"); err != nil {
			return URI{}, err
		}
	}
	if uri.Query != nil {
		if err := unescapeInto(uri.Query, "query"); err != nil {
			return URI{}, err
		}
	}
	if uri.Fragment != nil {
		if err := unescapeInto(uri.Fragment, "fragment"); err != nil {
			return URI{}, err
		}
	}

	return uri, nil
}

func Parse(rawURL string) (URI, error) {
	if containsCTL(rawURL) {
		return URI{}, errors.New("URI should not contain CTL bytes")
	}

	var uri URI

	rest := rawURL
	if scheme, after, found := strings.Cut(rawURL, ":"); found {
		if err := assertValidScheme(scheme); err != nil {
			return URI{}, errors.Wrap(err, "getting scheme")
		}
		uri.Scheme, rest = strings.ToLower(scheme), after
	}

	if strings.HasPrefix(rest, "//") {
		var authorityRaw string
		authorityRaw, rest = rest[2:], ""
		if i := strings.IndexAny(authorityRaw, "/?#"); i >= 0 {
			authorityRaw, rest = authorityRaw[:i], authorityRaw[i:]
		}

		authority, err := parseAuthority(authorityRaw)
		if err != nil {
			return URI{}, errors.Wrap(err, "parsing authority")
		}

		uri.Authority = &authority
	}

	// Cut off the fragment first, then the query, so a literal '?' inside
	// a fragment (legal per RFC 3986 3.5) stays part of it rather than
	// being mistaken for the query delimiter.
	path, frag, hasFrag := strings.Cut(rest, "#")
	path, query, hasQuery := strings.Cut(path, "?")

	hasAuthority := uri.Authority != nil
	if err := assertValidPath(path, hasAuthority, uri.IsRelativeRef()); err != nil {
		return URI{}, errors.Wrap(err, "path is not valid")
	}

	var err error
	uri.Path, err = unescape(path)
	if err != nil {
		return URI{}, errors.Wrap(err, "unescaping path")
	}

	if hasQuery {
		if !isQueryFragValid(query) {
			return URI{}, errors.New("query is not valid")
		}
		if query, err = unescape(query); err != nil {
			return URI{}, errors.Wrap(err, "unescaping query")
		}
		uri.Query = &query
	}

	if hasFrag {
		if !isQueryFragValid(frag) {
			return URI{}, errors.New("frag is not valid")
		}
		if frag, err = unescape(frag); err != nil {
			return URI{}, errors.Wrap(err, "unescaping fragment")
		}
		uri.Fragment = &frag
	}

	return uri, nil
}

// parseAuthority splits raw (everything between "//" and the next "/", "?"
// or "#") into userinfo, host and port: userinfo lives before the first
// '@', and the port, if any, is the run of digits after the last ':' that
// falls outside a "[...]" IP-literal.
func parseAuthority(raw string) (authority Authority, err error) {
	authority.Port = -1

	host := raw
	if i := strings.Index(raw, "@"); i >= 0 {
		userInfo := raw[:i]
		host = raw[i+1:]
		if !isValidUserInfo(userInfo) {
			return Authority{}, errors.New("user information is not valid")
		}
		if authority.UserInfo, err = unescape(userInfo); err != nil {
			return Authority{}, errors.Wrap(err, "unescaping user information")
		}
	}

	var portPart string
	switch {
	case strings.HasPrefix(host, "["):
		idx := strings.LastIndex(host, "]")
		if idx < 0 {
			return Authority{}, errors.New("missing ']' in IP Literal")
		}
		host, portPart = host[:idx+1], host[idx+1:]
	default:
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			host, portPart = host[:idx], host[idx:]
		}
	}

	if err := assertValidHost(host); err != nil {
		return Authority{}, errors.Wrap(err, "host is not valid")
	}

	if portPart != "" {
		// Not RFC's port rule verbatim (RFC allows any digit string,
		// including empty); this driver only ever dials real ports.
		digits := portPart[1:]
		n, err := strconv.ParseUint(digits, 10, 16)
		if err != nil {
			return Authority{}, errors.Wrap(err, "parsing port")
		}
		if digits[0] == '0' && !(n == 0 && len(digits) == 1) {
			return Authority{}, errors.New("port has leading zero")
		}
		authority.Port = int(n)
	}

	if authority.Host, err = unescape(host); err != nil {
		return Authority{}, errors.Wrap(err, "unescaping host")
	}
	authority.Host = strings.ToLower(authority.Host)

	return authority, nil
}
