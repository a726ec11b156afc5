package proxyhdr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// PP2Type identifies a TLV extension.
type PP2Type byte

// Registered TLV types.
const (
	PP2TypeALPN      PP2Type = 0x01
	PP2TypeAuthority PP2Type = 0x02
	PP2TypeCRC32C    PP2Type = 0x03
	PP2TypeNOOP      PP2Type = 0x04
	PP2TypeUniqueID  PP2Type = 0x05
	PP2TypeSSL       PP2Type = 0x20
	PP2TypeNetNS     PP2Type = 0x30

	// sub-types nested in the value of PP2TypeSSL
	PP2SubTypeSSLVersion PP2Type = 0x21
	PP2SubTypeSSLCN      PP2Type = 0x22
	PP2SubTypeSSLCipher  PP2Type = 0x23
	PP2SubTypeSSLSigAlg  PP2Type = 0x24
	PP2SubTypeSSLKeyAlg  PP2Type = 0x25
)

var pp2Names = map[PP2Type]string{
	PP2TypeALPN:      "ALPN",
	PP2TypeAuthority: "AUTHORITY",
	PP2TypeCRC32C:    "CRC32C",
	PP2TypeNOOP:      "NOOP",
	PP2TypeUniqueID:  "UNIQUE_ID",
	PP2TypeSSL:       "SSL",
	PP2TypeNetNS:     "NETNS",
}

func (t PP2Type) String() string {
	if name, ok := pp2Names[t]; ok {
		return name
	}
	return fmt.Sprintf("PP2Type(0x%02x)", byte(t))
}

// TLV is a type-length-value extension carried after the address block of a version 2 header.
type TLV struct {
	Type  PP2Type
	Value []byte
}

// ParseTLVs splits b into TLVs. Only the length fields are checked; values are copied.
func ParseTLVs(b []byte) ([]TLV, error) {
	var res []TLV
	for off := 0; off < len(b); {
		if len(b)-off < 3 {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "TLV header at offset %d", off)
		}
		typ := PP2Type(b[off])
		end := off + 3 + int(binary.BigEndian.Uint16(b[off+1:]))
		if end > len(b) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "%s value at offset %d", typ, off)
		}
		res = append(res, TLV{Type: typ, Value: append([]byte{}, b[off+3:end]...)})
		off = end
	}
	return res, nil
}

func (t TLV) append(b []byte) []byte {
	b = append(b, byte(t.Type))
	b = binary.BigEndian.AppendUint16(b, uint16(len(t.Value)))
	return append(b, t.Value...)
}

// WriteTo writes the encoded TLV to w.
func (t TLV) WriteTo(w io.Writer) (int64, error) {
	if len(t.Value) > 0xffff {
		return 0, errors.Errorf("%s value too long: %d bytes", t.Type, len(t.Value))
	}
	n, err := w.Write(t.append(make([]byte, 0, 3+len(t.Value))))
	return int64(n), err
}

// TLV returns the value of the first extension of type t.
func (h Header) TLV(t PP2Type) ([]byte, bool) {
	for _, tlv := range h.TLVs {
		if tlv.Type == t {
			return tlv.Value, true
		}
	}
	return nil, false
}
