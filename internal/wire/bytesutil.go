package wire

import (
	"bufio"
	"bytes"
	"io"
)

// readUntil reads from r until delim, inclusive of delim in the result.
func readUntil(r *bufio.Reader, delim []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for {
		b, err := r.ReadBytes(delim[len(delim)-1])
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		buf.Write(b)

		if bytes.HasSuffix(b, delim) {
			return buf.Bytes(), nil
		}
	}
}
