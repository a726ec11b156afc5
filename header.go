package proxyhdr

import (
	"io"
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

// Header is the information carried by a PROXY header.
//
// A Header with Local set carries no endpoints: it encodes as "PROXY UNKNOWN"
// in version 1 and with the LOCAL command in version 2.
type Header struct {
	Version Version
	Family  AddrFamily
	Source  Endpoint
	Dest    Endpoint

	// Local marks a connection made by the proxy itself rather than relayed.
	Local bool

	// TLVs are version 2 extensions following the address block.
	TLVs []TLV
}

// Encode returns the PROXY header for a TCP connection between the given endpoints.
//
// Decoding the result recovers every field exactly when the IPs are in
// canonical form (as printed by netip.Addr.String). Other spellings, such as
// "2001:DB8::1", are accepted; v1 carries them verbatim while v2 decodes them
// back in canonical form.
func Encode(v Version, fam AddrFamily, srcIP, dstIP string, srcPort, dstPort int) ([]byte, error) {
	return Header{
		Version: v,
		Family:  fam,
		Source:  Endpoint{IP: srcIP, Port: srcPort},
		Dest:    Endpoint{IP: dstIP, Port: dstPort},
	}.MarshalBinary()
}

// MarshalBinary returns the wire encoding of h.
func (h Header) MarshalBinary() ([]byte, error) {
	switch h.Version {
	case V1:
		return h.appendV1(make([]byte, 0, maxV1Len))
	case V2:
		return h.appendV2(make([]byte, 0, 16+h.Family.blockLen()))
	}
	return nil, ValidateVersion(h.Version)
}

// WriteTo writes the encoded header to w.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	b, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// SourceAddr returns the source as a *net.TCPAddr, or nil if the header carries no endpoints.
func (h Header) SourceAddr() net.Addr {
	if h.Local || h.Family.blockLen() == 0 {
		return nil
	}
	return h.Source.TCPAddr()
}

// DestAddr returns the destination as a *net.TCPAddr, or nil if the header carries no endpoints.
func (h Header) DestAddr() net.Addr {
	if h.Local || h.Family.blockLen() == 0 {
		return nil
	}
	return h.Dest.TCPAddr()
}

// parseIP parses s as an address of family f. INET requires a dotted quad;
// INET6 accepts any IPv6 literal including IPv4-mapped ones. Zones are rejected.
func parseIP(f AddrFamily, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "%q is not an IP address", s)
	}
	if addr.Zone() != "" {
		return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "%q has a zone", s)
	}
	switch f {
	case AddrFamilyInet:
		if !addr.Is4() {
			return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "%q is not an IPv4 address", s)
		}
	case AddrFamilyInet6:
		if !addr.Is6() {
			return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "%q is not an IPv6 address", s)
		}
	default:
		return netip.Addr{}, errors.Wrapf(ErrInvalidFamily, "%s has no IP addresses", f)
	}
	return addr, nil
}

// checkEndpoints validates both endpoints for family f.
func (h Header) checkEndpoints() (src, dst netip.Addr, err error) {
	src, err = parseIP(h.Family, h.Source.IP)
	if err != nil {
		return src, dst, errors.Wrap(err, "source")
	}
	dst, err = parseIP(h.Family, h.Dest.IP)
	if err != nil {
		return src, dst, errors.Wrap(err, "destination")
	}
	if err = ValidatePort(h.Source.Port); err != nil {
		return src, dst, errors.Wrap(err, "source")
	}
	if err = ValidatePort(h.Dest.Port); err != nil {
		return src, dst, errors.Wrap(err, "destination")
	}
	return src, dst, nil
}
