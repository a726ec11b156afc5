package proxyhdr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net/netip"

	"github.com/pkg/errors"
)

var sigV2 = []byte("\x0D\x0A\x0D\x0A\x00\x0D\x0A\x51\x55\x49\x54\x0A")

type rawV2 struct {
	Sig      [12]byte
	VerCmd   byte
	FamProto byte
	Len      uint16
}

func (h Header) appendV2(b []byte) ([]byte, error) {
	var tlvLen int
	for _, t := range h.TLVs {
		if len(t.Value) > 0xffff {
			return nil, errors.Wrapf(ErrInvalidAddress, "TLV 0x%02x value too long", byte(t.Type))
		}
		tlvLen += 3 + len(t.Value)
	}

	cmd, fam, proto := CommandProxy, h.Family, ProtoStream
	var src, dst netip.Addr
	if h.Local {
		cmd, fam, proto = CommandLocal, AddrFamilyUnspec, ProtoUnspec
	} else {
		if fam != AddrFamilyInet && fam != AddrFamilyInet6 {
			return nil, errors.Wrapf(ErrInvalidFamily, "%s cannot be sent in a v2 header", fam)
		}
		var err error
		src, dst, err = h.checkEndpoints()
		if err != nil {
			return nil, err
		}
	}

	length := fam.blockLen() + tlvLen
	if length > 0xffff {
		return nil, errors.Wrapf(ErrInvalidAddress, "v2 header payload of %d bytes exceeds 65535", length)
	}

	b = append(b, sigV2...)
	b = append(b, cmd.verCmd(), famProto(fam, proto))
	b = binary.BigEndian.AppendUint16(b, uint16(length))
	switch fam {
	case AddrFamilyInet:
		s4, d4 := src.As4(), dst.As4()
		b = append(b, s4[:]...)
		b = append(b, d4[:]...)
	case AddrFamilyInet6:
		s16, d16 := src.As16(), dst.As16()
		b = append(b, s16[:]...)
		b = append(b, d16[:]...)
	}
	if fam.blockLen() > 0 {
		b = binary.BigEndian.AppendUint16(b, uint16(h.Source.Port))
		b = binary.BigEndian.AppendUint16(b, uint16(h.Dest.Port))
	}
	for _, t := range h.TLVs {
		b = t.append(b)
	}
	return b, nil
}

func parseV2(r *bufio.Reader) (Header, error) {
	buf := make([]byte, 16, 16+36)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return Header{}, &InvalidHeaderErr{Read: buf[:n], error: errors.Wrap(err, "truncated header")}
	}
	var rawHdr rawV2
	err = binary.Read(bytes.NewReader(buf), binary.BigEndian, &rawHdr)
	if err != nil {
		return Header{}, &InvalidHeaderErr{Read: buf, error: err}
	}
	if !bytes.Equal(rawHdr.Sig[:], sigV2) {
		return Header{}, invalidHeader(buf, "invalid signature")
	}
	// highest 4 indicate version
	if (rawHdr.VerCmd >> 4) != 2 {
		return Header{}, invalidHeader(buf, "invalid v2 version value %d", rawHdr.VerCmd>>4)
	}
	// lowest 4 = command
	cmd := Command(rawHdr.VerCmd & 0xf)
	if cmd > CommandProxy {
		return Header{}, invalidHeader(buf, "invalid v2 command 0x%x", byte(cmd))
	}
	fam := AddrFamily(rawHdr.FamProto >> 4)
	proto := Proto(rawHdr.FamProto & 0xf)

	buf = append(buf, make([]byte, rawHdr.Len)...)
	n, err = io.ReadFull(r, buf[16:])
	if err != nil {
		return Header{}, invalidHeader(buf[:16+n], "truncated: length declares %d bytes, got %d", rawHdr.Len, n)
	}
	payload := buf[16:]

	h := Header{Version: V2}
	if cmd == CommandLocal {
		// addresses of a LOCAL header are ignored
		h.Local = true
		if fam != AddrFamilyUnspec {
			return h, nil
		}
	}

	switch fam {
	case AddrFamilyUnspec:
	case AddrFamilyInet, AddrFamilyInet6:
		if proto != ProtoStream {
			return Header{}, invalidHeader(buf, "unsupported v2 transport protocol %s", proto)
		}
		blockLen := fam.blockLen()
		if len(payload) < blockLen {
			return Header{}, invalidHeader(buf, "length %d inconsistent with %s address block of %d bytes", len(payload), fam, blockLen)
		}
		ipLen := (blockLen - 4) / 2
		h.Source.IP = addrFromSlice(payload[:ipLen])
		h.Dest.IP = addrFromSlice(payload[ipLen : 2*ipLen])
		h.Source.Port = int(binary.BigEndian.Uint16(payload[2*ipLen:]))
		h.Dest.Port = int(binary.BigEndian.Uint16(payload[2*ipLen+2:]))
		payload = payload[blockLen:]
	case AddrFamilyUnix:
		return Header{}, invalidHeader(buf, "unsupported v2 address family %s", fam)
	default:
		return Header{}, invalidHeader(buf, "invalid v2 address family 0x%x", byte(fam))
	}
	h.Family = fam

	h.TLVs, err = ParseTLVs(payload)
	if err != nil {
		return Header{}, &InvalidHeaderErr{Read: buf, error: errors.Wrap(err, "invalid TLV")}
	}
	return h, nil
}

func addrFromSlice(b []byte) string {
	addr, _ := netip.AddrFromSlice(b)
	return addr.String()
}
