package httpconn

import (
	"httpconn/internal/uri"
	"httpconn/internal/wire"

	"github.com/pkg/errors"
)

// redirectStatuses is the set of status codes that trigger a redirect
// hop, per RFC 9110 15.4.
var redirectStatuses = map[uint]bool{
	301: true,
	302: true,
	303: true,
	307: true,
	308: true,
}

func isRedirectStatus(code uint) bool { return redirectStatuses[code] }

// resolveLocation resolves the response's Location header against
// currentURL, returning the absolute URL of the redirect target.
func resolveLocation(currentURL string, headers []wire.Field) (string, error) {
	loc, ok := wire.HeaderGet(headers, "Location")
	if !ok || loc == "" {
		return "", ErrHTTPMissingLocation
	}

	base, err := uri.Parse(currentURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing current URL as redirect base")
	}
	ref, err := uri.Parse(loc)
	if err != nil {
		return "", errors.Wrap(err, "parsing Location header")
	}

	resolver, err := uri.NewRefResolver(base)
	if err != nil {
		return "", errors.Wrap(err, "constructing redirect resolver")
	}

	resolved := resolver.Resolve(ref)
	return resolved.String(), nil
}
