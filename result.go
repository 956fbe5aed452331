package httpconn

import (
	"httpconn/internal/ipaddr"
	"httpconn/internal/wire"
)

// Result is what a Sink receives — the completion sink of the original
// design. A bottled Get delivers exactly one Result, success or failure; a
// streaming Get delivers one Result per body read followed by a terminal
// one.
type Result struct {
	Err error

	StatusCode   uint
	ReasonPhrase string
	Headers      []wire.Field
	Trailers     []wire.Field

	// Body is the response body span. In bottled mode it is the whole,
	// gzip-inflated (if applicable) body delivered exactly once; in
	// streaming mode it is the newly-arrived slice for this Result.
	Body []byte

	Conn *Conn
}

// Header returns the first value of the named response header,
// case-insensitively.
func (r Result) Header(name string) (string, bool) {
	return wire.HeaderGet(r.Headers, name)
}

// Sink receives the outcome of a Get call. Internal redirect hops never
// produce a call of their own. In Bottled mode it is invoked once per
// call; in streaming mode it is invoked once per body read and once more
// with the terminal Result.
type Sink func(Result)

// ConnectObserver is invoked once a TCP connection has been established,
// before the request is written.
type ConnectObserver func(c *Conn)

// EndpointFilter may remove candidate endpoints after resolution,
// returning the (possibly smaller) list to try.
type EndpointFilter func(c *Conn, endpoints []Endpoint) []Endpoint

// HostnameFilter runs before any network activity; returning false fails
// the request with ErrBlockedByHostnameFilter.
type HostnameFilter func(c *Conn, hostname string) bool

// Endpoint is one resolved (address, port) candidate to connect to. Addr
// is nil for the sentinel endpoint used when resolution is delegated to
// a proxy.
type Endpoint struct {
	Addr ipaddr.Addr
	Port int
}

// ResponseInfo is a snapshot of the most recently completed Get, readable
// after the sink has already run — the Go counterpart of the original's
// parser member staying readable after callback returns.
type ResponseInfo struct {
	StatusCode       uint
	ReasonPhrase     string
	Headers          []wire.Field
	RedirectChainLen int
}
