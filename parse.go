package proxyhdr

import (
	"bufio"
	"bytes"

	"github.com/pkg/errors"
)

// Parse will detect and return a V1 or V2 header from r, otherwise an
// *InvalidHeaderErr is returned. Nothing past the header is consumed.
func Parse(r *bufio.Reader) (Header, error) {
	b, err := r.Peek(1)
	if err != nil {
		return Header{}, &InvalidHeaderErr{error: errors.Wrap(err, "truncated header")}
	}

	switch b[0] {
	case sigV1[0]:
		return parseV1(r)
	case sigV2[0]:
		return parseV2(r)
	}

	return Header{}, invalidHeader(append([]byte(nil), b...), "invalid signature")
}

// Decode parses a header from the start of b. Bytes following the header are ignored.
func Decode(b []byte) (Header, error) {
	size := len(b)
	if size < 16 {
		size = 16
	}
	return Parse(bufio.NewReaderSize(bytes.NewReader(b), size))
}
