package uri

import (
	"errors"
	"strings"
)

// RefResolver resolves relative references against a fixed base URI. Used
// to turn a Location header into an absolute URI for a redirect hop.
type RefResolver struct {
	base URI
}

func NewRefResolver(baseURI URI) (*RefResolver, error) {
	if baseURI.IsRelativeRef() {
		return nil, errors.New("baseURI cannot be relative ref")
	}
	return &RefResolver{base: baseURI}, nil
}

// Resolve implements RFC 3986 5.2.2's component-merging algorithm: the
// first of scheme, authority, path and query that ref supplies, and every
// component after it, come from ref; every component before it is
// inherited from the base. The fragment always comes from ref.
func (rr *RefResolver) Resolve(ref URI) URI {
	out, base := ref, rr.base

	switch {
	case out.Scheme != "":
		// ref carries its own scheme: nothing else is inherited.
	case out.Authority != nil:
		out.Scheme = base.Scheme
	case out.Path != "":
		out.Scheme, out.Authority = base.Scheme, base.Authority
		if !strings.HasPrefix(out.Path, "/") {
			out.Path = mergePath(base, out)
		}
	case out.Query != nil:
		out.Scheme, out.Authority, out.Path = base.Scheme, base.Authority, base.Path
	default:
		out.Scheme, out.Authority, out.Path, out.Query = base.Scheme, base.Authority, base.Path, base.Query
	}

	out.Path = removeDotSegments(out.Path)
	return out
}

// mergePath implements RFC 3986 5.2.3: an empty base path with an
// authority merges to "/"+ref; otherwise ref replaces the base path's
// last segment.
func mergePath(base, ref URI) string {
	if base.Authority != nil && base.Path == "" {
		return "/" + ref.Path
	}

	idx := strings.LastIndexByte(base.Path, '/')
	if idx < 0 {
		return ref.Path
	}
	return base.Path[:idx+1] + ref.Path
}
