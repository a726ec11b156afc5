package proxyhdr

import (
	"fmt"
	"strings"
)

// AddrFamily represents an address family, encoded in the high nibble of the
// 14th byte of a version 2 header.
// https://www.haproxy.org/download/1.8/doc/proxy-protocol.txt
type AddrFamily byte

const (
	// AddrFamilyUnspec means the connection is forwarded for an unknown, unspecified or unsupported protocol.
	AddrFamilyUnspec AddrFamily = 0x00

	// AddrFamilyInet is used when the forwarded connection uses the AF_INET address family (IPv4).
	AddrFamilyInet AddrFamily = 0x01

	// AddrFamilyInet6 is used when the forwarded connection uses the AF_INET6 address family (IPv6).
	AddrFamilyInet6 AddrFamily = 0x02

	// AddrFamilyUnix is used when the forwarded connection uses the AF_UNIX address family (UNIX).
	// It is recognized but never encoded or decoded.
	AddrFamilyUnix AddrFamily = 0x03
)

func (f AddrFamily) String() string {
	switch f {
	case AddrFamilyUnspec:
		return "UNSPEC"
	case AddrFamilyInet:
		return "INET"
	case AddrFamilyInet6:
		return "INET6"
	case AddrFamilyUnix:
		return "UNIX"
	}
	return fmt.Sprintf("AddrFamily(0x%02x)", byte(f))
}

// blockLen returns the size of the v2 address block for f, or 0 if f carries no addresses.
func (f AddrFamily) blockLen() int {
	switch f {
	case AddrFamilyInet:
		return 12
	case AddrFamilyInet6:
		return 36
	}
	return 0
}

// FamilyOf derives the address family from the syntax of an IP literal: any
// colon means INET6, everything else is INET. IPv4-mapped IPv6 literals
// such as "::ffff:10.0.0.1" are therefore INET6.
//
// The literal itself is not validated; that happens when the header is encoded.
func FamilyOf(ip string) AddrFamily {
	if strings.Contains(ip, ":") {
		return AddrFamilyInet6
	}
	return AddrFamilyInet
}
