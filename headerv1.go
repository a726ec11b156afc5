package proxyhdr

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// maxV1Len is the longest legal version 1 header, CRLF included.
const maxV1Len = 107

var (
	sigV1     = []byte("PROXY ")
	unknownV1 = []byte("PROXY UNKNOWN\r\n")
)

func (h Header) appendV1(b []byte) ([]byte, error) {
	if len(h.TLVs) > 0 {
		return nil, errors.Wrap(ErrInvalidVersion, "TLVs require version 2")
	}
	if h.Local {
		return append(b, unknownV1...), nil
	}
	fam, ok := v1ProtoFam(h.Family)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidFamily, "%s cannot be sent in a v1 header", h.Family)
	}
	if _, _, err := h.checkEndpoints(); err != nil {
		return nil, err
	}

	start := len(b)
	b = append(b, sigV1...)
	b = append(b, string(fam)...)
	b = append(b, ' ')
	b = append(b, h.Source.IP...)
	b = append(b, ' ')
	b = append(b, h.Dest.IP...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(h.Source.Port), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(h.Dest.Port), 10)
	b = append(b, '\r', '\n')
	if len(b)-start > maxV1Len {
		return nil, errors.Wrapf(ErrInvalidAddress, "v1 header is %d bytes, limit is %d", len(b)-start, maxV1Len)
	}
	return b, nil
}

func parseV1(r *bufio.Reader) (Header, error) {
	buf := make([]byte, 0, maxV1Len)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Header{}, &InvalidHeaderErr{Read: buf, error: errors.Wrap(err, "missing CRLF terminator")}
		}
		buf = append(buf, b)
		if b == '\n' {
			break
		}
		if len(buf) == maxV1Len {
			return Header{}, invalidHeader(buf, "missing CRLF terminator within %d bytes", maxV1Len)
		}
	}
	if !bytes.HasPrefix(buf, sigV1) {
		return Header{}, invalidHeader(buf, "invalid signature")
	}
	if len(buf) < 2 || buf[len(buf)-2] != '\r' {
		return Header{}, invalidHeader(buf, "line not terminated by CRLF")
	}

	fields := strings.Split(string(buf[:len(buf)-2]), " ")
	if len(fields) >= 2 && V1ProtoFam(fields[1]) == V1ProtoFamUnknown {
		// the rest of an UNKNOWN line is ignored
		return Header{Version: V1, Local: true}, nil
	}
	if len(fields) != 6 {
		return Header{}, invalidHeader(buf, "wrong field count: got %d, want 6", len(fields))
	}

	fam := V1ProtoFam(fields[1]).Family()
	if fam == AddrFamilyUnspec {
		return Header{}, invalidHeader(buf, "unsupported INET protocol/family %q", fields[1])
	}
	if _, err := parseIP(fam, fields[2]); err != nil {
		return Header{}, &InvalidHeaderErr{Read: buf, error: errors.Wrap(err, "source")}
	}
	if _, err := parseIP(fam, fields[3]); err != nil {
		return Header{}, &InvalidHeaderErr{Read: buf, error: errors.Wrap(err, "destination")}
	}
	srcPort, err := parsePortV1(fields[4])
	if err != nil {
		return Header{}, invalidHeader(buf, "invalid source port %q", fields[4])
	}
	dstPort, err := parsePortV1(fields[5])
	if err != nil {
		return Header{}, invalidHeader(buf, "invalid destination port %q", fields[5])
	}

	return Header{
		Version: V1,
		Family:  fam,
		Source:  Endpoint{IP: fields[2], Port: srcPort},
		Dest:    Endpoint{IP: fields[3], Port: dstPort},
	}, nil
}

func parsePortV1(s string) (int, error) {
	// decimal digits only
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	return int(n), err
}
