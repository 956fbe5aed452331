package httpconn

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"httpconn/internal/gzipbody"
	"httpconn/internal/wire"

	"github.com/pkg/errors"
)

type bodyFraming int

const (
	framingContentLength bodyFraming = iota
	framingChunked
	framingUntilClose
)

var errBottledTooLarge = errors.New("bottled body exceeds max-bottled-buffer")

// detectFraming picks the body framing per RFC 9112 6.3: chunked takes
// priority over Content-Length, and a response with neither is framed
// by connection close.
func detectFraming(headers []wire.Field) (bodyFraming, uint64) {
	if wire.HeaderHasToken(headers, "Transfer-Encoding", "chunked") {
		return framingChunked, 0
	}
	if v, ok := wire.HeaderGet(headers, "Content-Length"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return framingContentLength, n
		}
	}
	return framingUntilClose, 0
}

// handleResponse acts on a fully-decoded response header block: it either
// resolves and returns a redirect target (redirectBudget permitting) or
// reads and delivers the body, calling finish exactly once along the way.
// An empty return means the hop, and the whole Get, is done.
func (c *Conn) handleResponse(br *bufio.Reader, resp *wire.Response, opts GetOptions, currentURL string, redirectBudget int) string {
	if redirectBudget > 0 && isRedirectStatus(resp.StatusCode) {
		loc, err := resolveLocation(currentURL, resp.Headers)
		if err != nil {
			c.finish(Result{Err: err})
			return ""
		}
		return loc
	}

	framing, contentLength := detectFraming(resp.Headers)

	var bodyReader io.Reader
	switch framing {
	case framingChunked:
		bodyReader = wire.NewChunkedReader(br)
	case framingContentLength:
		bodyReader = io.LimitReader(br, int64(contentLength))
	default:
		bodyReader = br
	}

	if opts.Bottled {
		c.deliverBottled(bodyReader, framing, resp, opts)
		return ""
	}

	c.streamBody(bodyReader, resp, opts)
	return ""
}

func (c *Conn) deliverBottled(r io.Reader, framing bodyFraming, resp *wire.Response, opts GetOptions) {
	body, trailers, err := c.readAll(r, opts.MaxBottledBuffer)

	if err != nil {
		if c.expiry.Swap(expiryNone) == expiryTimedOut {
			c.finish(Result{Err: ErrTimedOut})
			return
		}
		if errors.Is(err, errBottledTooLarge) {
			c.finish(Result{Err: ErrFileTooLarge})
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if framing != framingUntilClose {
				c.finish(Result{Err: errors.Wrap(ErrEOF, "connection closed before body was complete")})
				return
			}
			// A close-framed body ending in EOF is the expected, clean end.
		} else {
			c.finish(Result{Err: errors.Wrap(ErrReadError, err.Error())})
			return
		}
	}

	if contentEncoding, ok := wire.HeaderGet(resp.Headers, "Content-Encoding"); ok && gzipbody.IsGzipEncoding(contentEncoding) {
		inflated, ierr := gzipbody.Inflate(body, opts.MaxBottledBuffer)
		if ierr != nil {
			c.finish(Result{Err: errors.Wrap(ErrGzipFailure, ierr.Error())})
			return
		}
		body = inflated
	}

	c.finish(Result{
		StatusCode:   resp.StatusCode,
		ReasonPhrase: resp.ReasonPhrase,
		Headers:      resp.Headers,
		Trailers:     trailers,
		Body:         body,
	})
}

// readAll drains r into a growing buffer, doubling capacity as needed and
// failing once it would exceed maxSize (0 means unbounded), matching the
// "double the buffer up to the cap" growth rule.
func (c *Conn) readAll(r io.Reader, maxSize uint) ([]byte, []wire.Field, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := c.limitedRead(r, chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if maxSize > 0 && uint(len(buf)) > maxSize {
				return nil, nil, errBottledTooLarge
			}
		}
		if err != nil {
			if err == io.EOF {
				var trailers []wire.Field
				if cr, ok := r.(*wire.ChunkedReader); ok {
					trailers = cr.Trailers()
				}
				return buf, trailers, nil
			}
			return buf, nil, err
		}
	}
}

// streamBody delivers each incoming read as its own Result — the
// streaming counterpart to bottled delivery. Unlike the bottled path this
// calls the sink more than once per Get; callers that need the
// exactly-once guarantee should use Bottled mode.
func (c *Conn) streamBody(r io.Reader, resp *wire.Response, opts GetOptions) {
	buf := make([]byte, 4096)
	first := true

	for {
		n, err := c.limitedRead(r, buf)
		if n > 0 {
			res := Result{Body: append([]byte(nil), buf[:n]...)}
			if first {
				res.StatusCode = resp.StatusCode
				res.ReasonPhrase = resp.ReasonPhrase
				res.Headers = resp.Headers
				first = false
			}
			c.deliver(res)
		}
		if err != nil {
			if c.expiry.Swap(expiryNone) == expiryTimedOut {
				c.finish(Result{Err: ErrTimedOut})
				return
			}
			if err == io.EOF {
				var trailers []wire.Field
				if cr, ok := r.(*wire.ChunkedReader); ok {
					trailers = cr.Trailers()
				}
				c.finish(Result{Trailers: trailers})
				return
			}
			c.finish(Result{Err: errors.Wrap(ErrReadError, err.Error())})
			return
		}
	}
}

// limitedRead applies the rate limiter's quota to a single read: when the
// limiter is unconfigured (rate 0) it behaves like a plain Read.
func (c *Conn) limitedRead(r io.Reader, buf []byte) (int, error) {
	for {
		if c.aborted.Load() {
			return 0, ErrOperationAborted
		}

		allowed := c.limiter.Allowance(uint(len(buf)))
		if allowed == 0 {
			c.clock.Sleep(10 * time.Millisecond)
			continue
		}

		return r.Read(buf[:allowed])
	}
}
