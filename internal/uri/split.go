package uri

import "github.com/pkg/errors"

// DefaultPort returns the well-known port for scheme, or -1 if unknown.
func DefaultPort(scheme string) int {
	switch scheme {
	case "http":
		return 80
	case "https":
		return 443
	default:
		return -1
	}
}

// Split decomposes rawURL into the five components the request driver
// needs: scheme, userinfo, host, port and path. port is -1 when the URI
// omits it and the scheme has no well-known default. An empty path is
// normalized to "/", matching what every HTTP/1.1 server expects on the
// request line.
func Split(rawURL string) (scheme, userinfo, host string, port int, path string, err error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", "", "", 0, "", errors.Wrap(err, "parsing URL")
	}

	if u.Scheme == "" {
		return "", "", "", 0, "", errors.New("URL has no scheme")
	}
	if u.Authority == nil {
		return "", "", "", 0, "", errors.New("URL has no authority (host)")
	}

	scheme = u.Scheme
	userinfo = u.Authority.UserInfo
	host = u.Authority.Host

	port = DefaultPort(scheme)
	if u.Authority.Port >= 0 {
		port = u.Authority.Port
	}

	path = u.Path
	if u.Query != nil {
		path += "?" + *u.Query
	}
	if path == "" {
		path = "/"
	}

	return scheme, userinfo, host, port, path, nil
}
