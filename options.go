package httpconn

import "time"

// ProxyKind selects which proxy protocol a request should be routed
// through, mirroring the tagged socket-variant the original chooses from
// (scheme, proxy) pairs.
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxyHTTP
	ProxySOCKS5
)

// ProxyConfig configures an optional proxy hop for a single Get call.
type ProxyConfig struct {
	Kind ProxyKind
	Host string
	Port int

	// Username/Password enable Basic (HTTP) or username/password (SOCKS5)
	// proxy authentication when non-empty.
	Username string
	Password string

	// ProxyHostnames requests that DNS resolution happen at the proxy
	// instead of locally — the SOCKS5 "remote resolve" mode, and implied
	// unconditionally for an HTTP proxy since the target hostname is sent
	// to it verbatim either as the CONNECT target or the absolute-form
	// request-target.
	ProxyHostnames bool
}

// ResolveFlags is opaque, implementation-defined resolver behavior. It is
// carried on GetOptions only: the Resolver interface takes no flags, and
// the driver does not pass these to the configured Resolver.
type ResolveFlags uint

// DefaultRedirectBudget is the number of 3xx hops a Get will follow when
// the caller does not override RedirectBudget.
const DefaultRedirectBudget = 5

// GetOptions configures a single Get call. Start from DefaultGetOptions
// and override only what the caller needs, the way the teacher's
// client.Options is built up.
type GetOptions struct {
	Timeout      time.Duration
	Priority     int // 0..2, reserved: carried but has no wire effect
	Proxy        *ProxyConfig
	RedirectBudget int
	UserAgent    string
	BindAddr     []byte // net.IP, optional
	ResolveFlags ResolveFlags

	// Auth is used to build the Authorization header only when the URL
	// itself carries no userinfo; a userinfo component in the URL always
	// takes precedence.
	Auth string

	// Bottled buffers the whole response and delivers it once via a
	// single Result; false streams each read as its own Result.
	Bottled bool
	// MaxBottledBuffer bounds the buffered body size in Bottled mode.
	// Zero means unbounded.
	MaxBottledBuffer uint

	// RateLimit caps download bytes/sec; zero means unconstrained.
	RateLimit uint64
}

// DefaultGetOptions returns sane defaults: 30s timeout, five redirects,
// a 1MiB bottled cap, bottled delivery.
func DefaultGetOptions() GetOptions {
	return GetOptions{
		Timeout:          30 * time.Second,
		RedirectBudget:   DefaultRedirectBudget,
		Bottled:          true,
		MaxBottledBuffer: 1 << 20,
	}
}
