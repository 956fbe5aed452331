package wire

import (
	"bufio"
	"bytes"
	"strconv"

	"httpconn/internal/rule"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies whether a single LF character should be
	// recognized as a valid line terminator.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace replaces all whitespace with SP and trims
	// leading/trailing whitespace, instead of rejecting it.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength bounds a single header line's length. Zero means
	// unbounded.
	MaxFieldLineLength uint

	// MaxStatusLineLength bounds the status line's length. Zero means
	// unbounded.
	MaxStatusLineLength uint
}

var DefaultDecodeOptions = DecodeOptions{}

var (
	errLineTooLong       = errors.New("line length exceeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")

	ErrFieldLineTooLong   = errors.New("field line length exceeds limit")
	ErrMalformedFieldLine = errors.New("field line is malformed")

	ErrStatusLineTooLong   = errors.New("status line length exceeds limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")
)

// ResponseDecoder decodes a status line and header block from a
// bufio.Reader fed by the socket adapter. The body is read separately: the
// decoder hands back the underlying *bufio.Reader via Reader() so the
// driver can apply Content-Length/chunked/EOF body framing on top of
// whatever the decoder has not yet consumed.
type ResponseDecoder struct {
	br   *bufio.Reader
	opts DecodeOptions
}

func NewResponseDecoder(br *bufio.Reader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{br: br, opts: opts}
}

// Reader returns the underlying buffered reader, positioned right after
// the header block once Decode has returned successfully.
func (rd *ResponseDecoder) Reader() *bufio.Reader { return rd.br }

func (rd *ResponseDecoder) Decode(r *Response) error {
	if err := rd.decodeStatusLine(&r.StatusLine); err != nil {
		return errors.Wrap(err, "parsing status line")
	}

	if err := rd.decodeHeaders(&r.Headers); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	return nil
}

func (rd *ResponseDecoder) readLine(limit uint) ([]byte, error) {
	raw, err := readUntil(rd.br, []byte{rule.LF})
	if err != nil {
		return nil, err
	}
	if limit > 0 && uint(len(raw)) > limit {
		return nil, errLineTooLong
	}

	line := raw[:len(raw)-1] // Drop LF.

	if !rd.opts.AllowSoleLF {
		if len(line) == 0 || line[len(line)-1] != rule.CR {
			return nil, ErrMissingCRBeforeLF
		}
		line = line[:len(line)-1] // Drop CR.
	}

	return normalizeLineEnding(line, rd.opts.LenientWhitespace), nil
}

// normalizeLineEnding folds embedded whitespace per the decoder's leniency
// setting: strict mode only replaces a bare CR (rfc9112 2.2-4), lenient
// mode replaces every whitespace byte with SP (runs are not collapsed)
// and trims SP from the ends.
func normalizeLineEnding(b []byte, lenient bool) []byte {
	if !lenient {
		return bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP})
	}

	for _, c := range rule.Whitespaces {
		b = bytes.ReplaceAll(b, []byte{c}, []byte{rule.SP})
	}
	return bytes.Trim(b, string([]byte{rule.SP}))
}

func (rd *ResponseDecoder) decodeHeaders(headers *[]Field) error {
	fields, err := rd.collectFieldLines()
	if err != nil {
		return err
	}
	*headers = fields
	return nil
}

// collectFieldLines reads field lines until the blank line terminating
// the header block.
func (rd *ResponseDecoder) collectFieldLines() ([]Field, error) {
	fields := make([]Field, 0)
	for {
		line, err := rd.readLine(rd.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return nil, ErrFieldLineTooLong
			}
			return nil, errors.Wrap(err, "reading line")
		}
		if len(line) == 0 {
			return fields, nil
		}

		field, err := ParseField(line)
		if err != nil {
			return nil, ErrMalformedFieldLine
		}
		fields = append(fields, field)
	}
}

// readNonEmptyLine skips every blank line preceding the message (RFC 9112
// 2.2-6) and returns the first line that actually has content.
func (rd *ResponseDecoder) readNonEmptyLine(limit uint) ([]byte, error) {
	for {
		b, err := rd.readLine(limit)
		if err != nil {
			return nil, err
		}
		if len(b) > 0 {
			return b, nil
		}
	}
}

func (rd *ResponseDecoder) decodeStatusLine(statLine *StatusLine) error {
	line, err := rd.readNonEmptyLine(rd.opts.MaxStatusLineLength)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return ErrStatusLineTooLong
		}
		return errors.Wrap(err, "reading line")
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return ErrMalformedStatusLine
	}

	*statLine = parsed
	return nil
}

// parseStatusLine cuts "version SP status-code SP reason-phrase" at its
// two mandatory spaces; the reason-phrase after the second space may
// itself contain spaces, so the line is cut left-to-right rather than split.
func parseStatusLine(line []byte) (StatusLine, error) {
	verField, rest, ok := bytes.Cut(line, []byte{rule.SP})
	if !ok {
		return StatusLine{}, errors.New("status line is malformed")
	}
	codeField, reasonField, ok := bytes.Cut(rest, []byte{rule.SP})
	if !ok {
		return StatusLine{}, errors.New("status line is malformed")
	}

	ver, err := ParseVersion(verField)
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	codeStr := string(codeField)
	statusCode, err := strconv.ParseUint(codeStr, 10, 64)
	if err != nil || len(codeStr) != 3 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", codeStr)
	}

	return StatusLine{Version: ver, StatusCode: uint(statusCode), ReasonPhrase: string(reasonField)}, nil
}
