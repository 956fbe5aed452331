package wire

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"httpconn/internal/rule"

	"github.com/pkg/errors"
)

// Chunk is one decoded chunk of a chunked transfer-coded body.
type Chunk struct {
	Size       uint
	Extensions [][2]string
	data       io.Reader
}

// ChunkedReader decodes an RFC 9112 7.1 chunked body into a plain byte
// stream, capturing trailer fields on the terminating zero-size chunk.
type ChunkedReader struct {
	br       *bufio.Reader
	chunk    *Chunk
	read     uint
	crlfDump []byte

	trailers []Field
}

var _ io.Reader = (*ChunkedReader)(nil)

func NewChunkedReader(br *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{br: br, crlfDump: make([]byte, 2)}
}

func (cr *ChunkedReader) LastChunk() *Chunk { return cr.chunk }

// Trailers returns trailer fields collected once Read has returned io.EOF.
func (cr *ChunkedReader) Trailers() []Field { return cr.trailers }

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.chunk == nil {
		if err := cr.decodeChunk(); err != nil {
			return 0, errors.Wrap(err, "decoding chunk")
		}

		if cr.chunk.Size == 0 {
			if err := cr.decodeTrailers(); err != nil {
				return 0, errors.Wrap(err, "decoding trailer")
			}
			return 0, io.EOF
		}
	}

	remain := cr.chunk.Size - cr.read
	if uint(len(b)) > remain {
		b = b[:remain]
	}

	n, err := cr.chunk.data.Read(b)
	if err != nil {
		return n, errors.Wrap(err, "reading chunk data")
	}

	cr.read += uint(n)

	if cr.read == cr.chunk.Size {
		if _, err := io.ReadFull(cr.chunk.data, cr.crlfDump); err != nil {
			return n, errors.Wrap(err, "reading chunk delimiter")
		}

		if !bytes.Equal(cr.crlfDump, rule.CRLF) {
			return n, errors.New("CRLF delimiter not found")
		}

		cr.chunk = nil
		cr.read = 0
	}

	return n, nil
}

// decodeChunk reads one "chunk-size [ chunk-ext ] CRLF" line and points
// cr.chunk's data reader at cr.br for the caller to drain.
func (cr *ChunkedReader) decodeChunk() error {
	line, err := readLine(cr.br)
	if err != nil {
		return err
	}

	sizeField, extField, hasExt := bytes.Cut(line, []byte{';'})

	size, err := decodeChunkSize(bytes.TrimFunc(sizeField, rule.IsWhitespace))
	if err != nil {
		return errors.Wrap(err, "decoding chunk size")
	}

	var extensions [][2]string
	if hasExt {
		extensions = decodeChunkExtensions(extField)
	}

	cr.chunk = &Chunk{Size: size, Extensions: extensions, data: cr.br}
	return nil
}

// decodeChunkExtensions splits a ';'-delimited chunk-ext field into
// name/value pairs, unquoting quoted-string values.
func decodeChunkExtensions(raw []byte) [][2]string {
	extensions := make([][2]string, 0)
	for _, part := range bytes.Split(raw, []byte{';'}) {
		name, value, _ := bytes.Cut(part, []byte{'='})
		name = bytes.TrimFunc(name, rule.IsWhitespace)
		value = bytes.TrimFunc(value, rule.IsWhitespace)
		extensions = append(extensions, [2]string{string(name), string(rule.Unquote(value))})
	}
	return extensions
}

// decodeChunkSize parses a chunk-size hex digit string, rejecting sizes
// that don't fit in 64 bits the same way an overlong hex string would.
func decodeChunkSize(b []byte) (uint, error) {
	n, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing hex chunk size %q", string(b))
	}
	return uint(n), nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	fields := make([]Field, 0)
	for {
		line, err := readLine(cr.br)
		if err != nil {
			return errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			break
		}

		field, err := ParseField(line)
		if err != nil {
			return errors.Wrap(err, "parsing field")
		}

		fields = append(fields, field)
	}

	cr.trailers = fields
	return nil
}

// readLine reads until CRLF and strips it.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := readUntil(br, rule.CRLF)
	if err != nil {
		return nil, err
	}
	return line[:len(line)-2], nil
}
