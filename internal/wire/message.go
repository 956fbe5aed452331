// Package wire implements RFC 9110/9112 HTTP/1.1 message-level parsing:
// status lines, header fields, versions and chunked transfer coding. The
// client composes its own request lines (see reqline.go in package
// httpconn) since
// it only ever sends GET requests, but decodes arbitrary responses.
package wire

import (
	"bytes"
	"strconv"

	"httpconn/internal/rule"

	"github.com/pkg/errors"
)

// StatusLine is the parsed first line of an HTTP response.
type StatusLine struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
}

// Response is a decoded HTTP/1.1 response, headers only — the body is
// read separately by the driver according to the transfer-coding /
// content-length rules in RFC 9112 6.3.
type Response struct {
	StatusLine
	Headers []Field
}

// Version is [Major, Minor].
type Version [2]uint

// ParseVersion parses "HTTP/1.1"-style text into a Version.
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	first, second, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot seperator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 64)
	minor, err2 := strconv.ParseUint(string(second), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write([]byte("HTTP/"))
	buf.Write([]byte(strconv.FormatUint(uint64(ver[0]), 10)))
	buf.Write([]byte{'.'})
	buf.Write([]byte(strconv.FormatUint(uint64(ver[1]), 10)))
	return buf.Bytes()
}

func (ver Version) String() string { return string(ver.Text()) }

// Field is a single HTTP header field.
type Field struct{ Name, Value []byte }

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", string(fieldLine))
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	for _, c := range rule.OWS {
		if bytes.HasSuffix(name, []byte{c}) {
			return Field{}, errors.New("field name has trailing whitespace")
		}
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	for _, c := range rule.OWS {
		value = bytes.Trim(value, string([]byte{c}))
	}

	return Field{Name: name, Value: value}, nil
}

func (f *Field) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(f.Name)
	buf.Write([]byte(": "))
	buf.Write(f.Value)
	return buf.Bytes()
}

// NameEqual reports whether f's name matches name case-insensitively, per
// RFC 9110 5.1: field names are case-insensitive tokens.
func (f *Field) NameEqual(name string) bool {
	return len(f.Name) == len(name) && bytes.EqualFold(f.Name, []byte(name))
}
