// Package gzipbody inflates a gzip- or x-gzip-encoded response body at
// delivery time, the way the original http_connection inflates the whole
// bottled buffer once the response is complete rather than streaming
// through a pipe.
package gzipbody

import (
	"bytes"
	"compress/gzip"
	"io"

	"httpconn/internal/ioutil"

	"github.com/pkg/errors"
)

// ErrTooLarge is returned when the inflated body would exceed maxSize.
var ErrTooLarge = errors.New("gzip: inflated body exceeds maximum size")

// Inflate decompresses body, a complete gzip member, capping the output at
// maxSize bytes. maxSize of 0 means unbounded.
func Inflate(body []byte, maxSize uint) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "opening gzip reader")
	}
	defer zr.Close()

	var r io.Reader = zr
	if maxSize > 0 {
		// Read one byte past the limit so we can distinguish "exactly
		// maxSize bytes" from "more than maxSize bytes".
		r = ioutil.LimitReader(zr, maxSize+1)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading inflated body")
	}

	if maxSize > 0 && uint(len(out)) > maxSize {
		return nil, ErrTooLarge
	}

	return out, nil
}

// IsGzipEncoding reports whether the Content-Encoding value names the gzip
// coding, including the compatibility alias "x-gzip" the original C++
// implementation also accepts.
func IsGzipEncoding(contentEncoding string) bool {
	return contentEncoding == "gzip" || contentEncoding == "x-gzip"
}
