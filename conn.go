// Package httpconn implements a single-request-at-a-time, asynchronous
// HTTP/1.1 client core: URL parsing, DNS resolution with endpoint
// failover, optional SOCKS5/HTTP-proxy traversal, optional TLS,
// redirect-following, gzip inflation and a token-bucket download rate
// limiter, all driven from one goroutine per in-flight request so no
// internal locking is needed on the request's own state.
package httpconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"httpconn/internal/deadline"
	"httpconn/internal/ioutil"
	"httpconn/internal/ratelimit"
	"httpconn/internal/resolve"
	"httpconn/internal/sliceutil"
	"httpconn/internal/socket"
	"httpconn/internal/uri"
	"httpconn/internal/wire"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

const (
	expiryNone = iota
	expiryFailover
	expiryTimedOut
)

// Conn drives a single HTTP GET at a time. Create one with New and reuse
// it for sequential requests; concurrent Get calls on the same Conn are
// rejected, matching the "at most one pending async operation per
// handle" invariant.
type Conn struct {
	resolver  resolve.Resolver
	dialer    *net.Dialer
	tlsConfig *tls.Config
	clock     clock.Clock
	logger    *slog.Logger
	rnd       *rand.Rand

	// portTable reserves the local port a BindAddr dial binds from, so
	// two dials sharing a table (see WithPortTable) never race for the
	// same ephemeral port before either has actually called bind(2).
	portTable *socket.PortTable

	sink           Sink
	onConnect      ConnectObserver
	endpointFilter EndpointFilter
	hostnameFilter HostnameFilter

	deadline *deadline.Timer
	limiter  *ratelimit.Limiter
	ctl      ctlBox

	cursor       atomic.Int64
	endpointsLen atomic.Int64
	aborted      atomic.Bool
	expiry       atomic.Int32

	mu      sync.Mutex
	running bool

	calledOnceMu sync.Mutex
	calledOnce   *sync.Once

	redirectsFollowed atomic.Int32

	lastRespMu sync.Mutex
	lastResp   *ResponseInfo
}

// Option configures a Conn at construction time.
type Option func(*Conn)

func WithResolver(r resolve.Resolver) Option    { return func(c *Conn) { c.resolver = r } }
func WithDialer(d *net.Dialer) Option           { return func(c *Conn) { c.dialer = d } }
func WithTLSConfig(cfg *tls.Config) Option      { return func(c *Conn) { c.tlsConfig = cfg } }
func WithClock(cl clock.Clock) Option           { return func(c *Conn) { c.clock = cl } }
func WithLogger(l *slog.Logger) Option          { return func(c *Conn) { c.logger = l } }
func WithRandSource(r *rand.Rand) Option        { return func(c *Conn) { c.rnd = r } }
func WithConnectObserver(f ConnectObserver) Option { return func(c *Conn) { c.onConnect = f } }
func WithEndpointFilter(f EndpointFilter) Option   { return func(c *Conn) { c.endpointFilter = f } }
func WithHostnameFilter(f HostnameFilter) Option   { return func(c *Conn) { c.hostnameFilter = f } }

// WithPortTable shares an ephemeral-port reservation table across
// multiple Conns, so BindAddr dials from a pool of Conns don't race each
// other for the same local port. Conns not given one get a private table.
func WithPortTable(t *socket.PortTable) Option { return func(c *Conn) { c.portTable = t } }

// New creates a Conn that delivers every Get's outcome to sink.
func New(sink Sink, opts ...Option) *Conn {
	c := &Conn{
		sink:      sink,
		resolver:  resolve.NewNetResolver(),
		dialer:    &net.Dialer{},
		clock:     clock.New(),
		logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		calledOnce: &sync.Once{},
	}

	for _, o := range opts {
		o(c)
	}

	c.limiter = ratelimit.New(c.clock)
	c.deadline = deadline.New(c.clock, c.onDeadlineExpire)
	if c.portTable == nil {
		c.portTable = socket.NewPortTable(socket.EphemeralPortOptions{
			Range:  [2]uint16{49152, 65535},
			Rand:   c.ephemeralPortRand,
			MaxTry: 32,
		})
	}

	return c
}

// ephemeralPortRand backs the default port table's randomness, falling
// back to the shared math/rand source when no WithRandSource was given.
func (c *Conn) ephemeralPortRand() uint16 {
	if c.rnd != nil {
		return uint16(c.rnd.Intn(1 << 16))
	}
	return uint16(rand.Intn(1 << 16))
}

// RateLimit sets the download rate in bytes/sec; zero means unconstrained.
// It does not disarm an already-running refill timer once one has been
// armed by a previous nonzero rate.
func (c *Conn) RateLimit(bytesPerSec uint64) {
	c.limiter.SetRate(bytesPerSec)
}

// Close ends the current request, if any. A forceful close cancels the
// deadline timer and hard-closes the socket immediately; a graceful one
// only half-closes the write side and lets any in-flight read complete
// or fail on its own.
func (c *Conn) Close(force bool) {
	c.aborted.Store(true)

	if force {
		c.deadline.Cancel()
		c.limiter.Close()
		c.ctl.interrupt()
		return
	}

	if s := c.ctl.socket(); s != nil {
		s.Shutdown()
	}
}

// Get starts an asynchronous GET against rawURL. The outcome — including
// synchronous validation failures — is always delivered to the sink on a
// separate goroutine, never before Get returns.
func (c *Conn) Get(rawURL string, opts GetOptions) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		go c.sink(Result{Err: errors.New("httpconn: a request is already in flight on this Conn")})
		return
	}
	c.running = true
	c.mu.Unlock()

	c.aborted.Store(false)
	c.calledOnceMu.Lock()
	c.calledOnce = &sync.Once{}
	c.calledOnceMu.Unlock()

	go c.run(rawURL, opts)
}

func (c *Conn) run(initialURL string, opts GetOptions) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit > 0 {
		c.limiter.SetRate(opts.RateLimit)
	}

	c.deadline.Arm(opts.Timeout)
	c.redirectsFollowed.Store(0)

	currentURL := initialURL
	redirectBudget := opts.RedirectBudget

	for {
		scheme, userinfo, host, port, path, err := uri.Split(currentURL)
		if err != nil {
			c.finish(Result{Err: errors.Wrap(ErrURLParseFailed, err.Error())})
			return
		}
		if scheme != "http" && scheme != "https" {
			c.finish(Result{Err: ErrUnsupportedURLProtocol})
			return
		}
		if c.hostnameFilter != nil && !c.hostnameFilter(c, host) {
			c.finish(Result{Err: ErrBlockedByHostnameFilter})
			return
		}

		auth := userinfo
		if auth == "" {
			auth = opts.Auth
		}

		target, viaProxy := requestTarget(currentURL, path, scheme, opts.Proxy)
		reqLine := buildRequestLine(scheme, host, port, target, opts, auth, viaProxy)

		sock, err := c.performHop(host, port, scheme == "https", opts)
		if err != nil {
			return // performHop already delivered the failure.
		}

		if err := c.writeRequestOnHop(sock, reqLine); err != nil {
			return
		}

		resp, br, err := c.decodeResponse(sock)
		if err != nil {
			return
		}

		loc := c.handleResponse(br, resp, opts, currentURL, redirectBudget)
		if loc == "" {
			return
		}

		sock.Close()
		redirectBudget--
		c.redirectsFollowed.Add(1)
		currentURL = loc
	}
}

// performHop resolves and connects to host:port, trying every candidate
// endpoint in turn until one succeeds or the list is exhausted.
func (c *Conn) performHop(host string, port int, useTLS bool, opts GetOptions) (socket.Socket, error) {
	c.ctl.reset() // release the previous hop's context/socket, if any

	ctx, cancel := context.WithCancel(context.Background())
	c.ctl.setCancel(cancel)

	endpoints, err := c.resolveEndpoints(ctx, host, port, opts)
	if err != nil {
		cancel()
		switch {
		case c.expiry.Swap(expiryNone) == expiryTimedOut:
			c.finish(Result{Err: ErrTimedOut})
			return nil, ErrTimedOut
		case errors.Is(err, ErrAddressFamilyNotSupported):
			c.finish(Result{Err: err})
		default:
			c.finish(Result{Err: errors.Wrap(ErrResolveError, err.Error())})
		}
		return nil, err
	}

	c.cursor.Store(0)
	c.endpointsLen.Store(int64(len(endpoints)))
	c.expiry.Store(expiryNone)
	// Resolution succeeded: reset start-time for the connect phase.
	c.deadline.Arm(opts.Timeout)

	var lastErr error
	for {
		idx := c.cursor.Load()
		if idx >= int64(len(endpoints)) {
			cancel()
			finalErr := errors.Wrap(ErrConnectError, "endpoint list exhausted")
			if lastErr != nil {
				finalErr = errors.Wrap(ErrConnectError, lastErr.Error())
			}
			c.finish(Result{Err: finalErr})
			return nil, finalErr
		}
		ep := endpoints[idx]
		c.cursor.Add(1)

		if c.aborted.Load() {
			cancel()
			c.finish(Result{Err: ErrOperationAborted})
			return nil, ErrOperationAborted
		}

		sock, dialErr := c.dialEndpoint(ctx, host, port, ep, useTLS, opts)
		if dialErr != nil {
			lastErr = dialErr
			switch c.expiry.Swap(expiryNone) {
			case expiryTimedOut:
				cancel()
				c.finish(Result{Err: ErrTimedOut})
				return nil, ErrTimedOut
			case expiryFailover:
				// The deadline genuinely fired but endpoints remain: mirror
				// on_timeout's unconditional reschedule so a hang against
				// the next endpoint is still caught, instead of leaving the
				// watchdog dead for the rest of the request.
				c.deadline.Arm(opts.Timeout)
			}
			if c.aborted.Load() {
				cancel()
				c.finish(Result{Err: ErrOperationAborted})
				return nil, ErrOperationAborted
			}
			continue
		}

		// Endpoint failover is over: any deadline fire from here on is a
		// genuine timeout of this hop, not "try the next candidate".
		c.endpointsLen.Store(0)
		c.cursor.Store(0)

		c.ctl.setSocket(sock)
		if c.onConnect != nil {
			c.onConnect(c)
		}
		return sock, nil
	}
}

func (c *Conn) writeRequestOnHop(sock socket.Socket, reqLine string) error {
	if _, err := ioutil.WriteFull(sock, []byte(reqLine)); err != nil {
		switch c.expiry.Swap(expiryNone) {
		case expiryTimedOut:
			sock.Close()
			c.finish(Result{Err: ErrTimedOut})
			return ErrTimedOut
		}
		sock.Close()
		werr := errors.Wrap(ErrWriteError, err.Error())
		c.finish(Result{Err: werr})
		return werr
	}
	return nil
}

func (c *Conn) decodeResponse(sock socket.Socket) (*wire.Response, *bufio.Reader, error) {
	br := bufio.NewReader(sock)
	dec := wire.NewResponseDecoder(br, wire.DefaultDecodeOptions)

	var resp wire.Response
	if err := dec.Decode(&resp); err != nil {
		switch c.expiry.Swap(expiryNone) {
		case expiryTimedOut:
			sock.Close()
			c.finish(Result{Err: ErrTimedOut})
			return nil, nil, ErrTimedOut
		}
		sock.Close()
		perr := errors.Wrap(ErrHTTPParseError, err.Error())
		c.finish(Result{Err: perr})
		return nil, nil, perr
	}

	return &resp, dec.Reader(), nil
}

// resolveEndpoints resolves host to a shuffled, family-filtered candidate
// list, or returns a single nil-Addr sentinel endpoint when resolution is
// delegated to a proxy.
//
// An HTTP proxy is the actual TCP peer for the hop — the origin host only
// ever appears inside the request line or a CONNECT target — so it is the
// proxy's own address that needs to go through the resolver, exactly as
// the original implementation reassigns hostname/port to the proxy's
// before resolving. That gives HTTP-proxied requests the same
// endpoint-list shuffle, bind-family filtering, EndpointFilter and
// resolving-budget doubling a direct connection gets. A SOCKS5 proxy
// with remote name resolution is the one case spec.md exempts from local
// resolution outright, since the proxy itself resolves the target.
func (c *Conn) resolveEndpoints(ctx context.Context, host string, port int, opts GetOptions) ([]Endpoint, error) {
	if opts.Proxy != nil && opts.Proxy.Kind == ProxySOCKS5 && opts.Proxy.ProxyHostnames {
		return []Endpoint{{Addr: nil, Port: port}}, nil
	}

	resolveHost, resolvePort := host, port
	if opts.Proxy != nil && opts.Proxy.Kind == ProxyHTTP {
		resolveHost, resolvePort = opts.Proxy.Host, opts.Proxy.Port
	}

	c.deadline.SetResolving(true)
	addrs, err := c.resolver.Resolve(ctx, resolveHost)
	c.deadline.SetResolving(false)
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(addrs))
	for _, a := range addrs {
		endpoints = append(endpoints, Endpoint{Addr: a, Port: resolvePort})
	}

	if opts.BindAddr != nil {
		want := ipFamily(net.IP(opts.BindAddr))
		filtered := endpoints[:0]
		for _, e := range endpoints {
			if e.Addr.Version() == want {
				filtered = append(filtered, e)
			}
		}
		endpoints = filtered
	}

	if c.endpointFilter != nil {
		endpoints = c.endpointFilter(c, endpoints)
	}

	if len(endpoints) == 0 {
		return nil, ErrAddressFamilyNotSupported
	}

	sliceutil.Shuffle(endpoints, c.rnd)
	return endpoints, nil
}

func ipFamily(ip net.IP) uint {
	if ip.To4() != nil {
		return 4
	}
	return 6
}

func (c *Conn) dialEndpoint(ctx context.Context, host string, port int, ep Endpoint, useTLS bool, opts GetOptions) (socket.Socket, error) {
	dialer := c.dialer
	if opts.BindAddr != nil {
		localAddr := &net.TCPAddr{IP: net.IP(opts.BindAddr)}
		if ok, port, release := c.portTable.Occupy(0); ok {
			localAddr.Port = int(port)
			defer release()
		}

		ld := *dialer
		ld.LocalAddr = localAddr
		dialer = &ld
	}

	var raw net.Conn
	var err error

	switch {
	case opts.Proxy == nil:
		addr := net.JoinHostPort(ep.Addr.ToNetIP().String(), strconv.Itoa(ep.Port))
		raw, err = dialer.DialContext(ctx, "tcp", addr)

	case opts.Proxy.Kind == ProxySOCKS5:
		proxyAddr := net.JoinHostPort(opts.Proxy.Host, strconv.Itoa(opts.Proxy.Port))
		var auth *socket.SOCKS5Auth
		if opts.Proxy.Username != "" {
			auth = &socket.SOCKS5Auth{Username: opts.Proxy.Username, Password: opts.Proxy.Password}
		}
		targetHost := host
		if ep.Addr != nil {
			targetHost = ep.Addr.ToNetIP().String()
		}
		raw, err = socket.DialSOCKS5(ctx, dialer, proxyAddr, auth, targetHost, port, opts.Proxy.ProxyHostnames)

	case opts.Proxy.Kind == ProxyHTTP:
		// ep is the proxy's own resolved address here (see
		// resolveEndpoints), not the origin's — the origin host/port only
		// go into the CONNECT target or the request line.
		proxyAddr := net.JoinHostPort(ep.Addr.ToNetIP().String(), strconv.Itoa(opts.Proxy.Port))
		if useTLS {
			var auth *socket.HTTPProxyAuth
			if opts.Proxy.Username != "" {
				auth = &socket.HTTPProxyAuth{Username: opts.Proxy.Username, Password: opts.Proxy.Password}
			}
			target := net.JoinHostPort(host, strconv.Itoa(port))
			raw, err = socket.DialHTTPConnect(ctx, dialer, proxyAddr, auth, target)
		} else {
			raw, err = dialer.DialContext(ctx, "tcp", proxyAddr)
		}

	default:
		err = errors.New("unsupported proxy kind")
	}

	if err != nil {
		return nil, err
	}

	sock := socket.Wrap(raw)
	if useTLS {
		if err := sock.UpgradeTLS(ctx, c.effectiveTLSConfig(), host); err != nil {
			sock.Close()
			return nil, errors.Wrap(ErrTLSError, err.Error())
		}
	}

	return sock, nil
}

func (c *Conn) effectiveTLSConfig() *tls.Config {
	if c.tlsConfig != nil {
		return c.tlsConfig
	}
	return &tls.Config{}
}

// onDeadlineExpire runs on the deadline timer's own goroutine. It never
// touches Conn business-logic fields directly: it only decides, from the
// atomics, whether the expiry should be treated as "try the next
// endpoint" or "give up", then interrupts whatever the request goroutine
// is currently blocked on.
func (c *Conn) onDeadlineExpire() {
	remaining := c.endpointsLen.Load() - c.cursor.Load()
	if remaining > 0 && !c.aborted.Load() {
		c.expiry.Store(expiryFailover)
	} else {
		c.expiry.Store(expiryTimedOut)
	}
	c.ctl.interrupt()
}

// deliver sends an intermediate, non-terminal Result (streaming-mode
// chunks) directly to the sink, without marking the request finished.
func (c *Conn) deliver(r Result) {
	if c.aborted.Load() {
		return
	}
	r.Conn = c
	c.sink(r)
}

// finish delivers the terminal Result exactly once per Get and tears down
// the deadline timer, the current socket and the hop's context. The
// in-flight flag is cleared separately, when run returns.
func (c *Conn) finish(r Result) {
	c.calledOnceMu.Lock()
	once := c.calledOnce
	c.calledOnceMu.Unlock()

	once.Do(func() {
		if r.StatusCode != 0 {
			c.lastRespMu.Lock()
			c.lastResp = &ResponseInfo{
				StatusCode:       r.StatusCode,
				ReasonPhrase:     r.ReasonPhrase,
				Headers:          r.Headers,
				RedirectChainLen: int(c.redirectsFollowed.Load()),
			}
			c.lastRespMu.Unlock()
		}
		if !c.aborted.Load() {
			r.Conn = c
			c.sink(r)
		}
		c.deadline.Cancel()
		if s := c.ctl.socket(); s != nil {
			s.Close()
		}
		c.ctl.reset()
	})
}

// LastResponse returns a snapshot of the most recently completed Get's
// response, or nil if none has completed yet (or the last Get never got
// a response at all — a synchronous validation or network failure).
func (c *Conn) LastResponse() *ResponseInfo {
	c.lastRespMu.Lock()
	defer c.lastRespMu.Unlock()
	return c.lastResp
}

