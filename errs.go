package httpconn

import "github.com/pkg/errors"

// Sentinel errors, one per category named in the client's error-handling
// design. Call sites wrap these with github.com/pkg/errors for
// call-site context; errors.Is/errors.Cause recovers the sentinel.
var (
	// Parse failures.
	ErrURLParseFailed      = errors.New("url-parse-failed")
	ErrHTTPParseError      = errors.New("http-parse-error")
	ErrHTTPMissingLocation = errors.New("http-missing-location")

	// Policy failures.
	ErrUnsupportedURLProtocol   = errors.New("unsupported-url-protocol")
	ErrBlockedByHostnameFilter  = errors.New("blocked-by-idna")
	ErrAddressFamilyNotSupported = errors.New("address-family-not-supported")

	// Transport failures.
	ErrResolveError = errors.New("resolve-error")
	ErrConnectError = errors.New("connect-error")
	ErrWriteError   = errors.New("write-error")
	ErrReadError    = errors.New("read-error")
	ErrTLSError     = errors.New("tls-error")
	ErrEOF          = errors.New("eof")

	// Resource failures.
	ErrFileTooLarge = errors.New("file-too-large")
	ErrGzipFailure  = errors.New("gzip-failure")

	// Lifecycle.
	ErrTimedOut         = errors.New("timed-out")
	ErrOperationAborted = errors.New("operation-aborted")
)
