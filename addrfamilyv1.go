package proxyhdr

// V1ProtoFam represents an address family and transport protocol for PROXY protocol version 1.
type V1ProtoFam string

const (
	// V1ProtoFamUnknown indicates other, unsupported, or unknown protocols.
	V1ProtoFamUnknown V1ProtoFam = "UNKNOWN"

	// V1ProtoFamTCP4 for TCP over IPv4
	V1ProtoFamTCP4 V1ProtoFam = "TCP4"

	// V1ProtoFamTCP6 for TCP over IPv6
	V1ProtoFamTCP6 V1ProtoFam = "TCP6"
)

// v1ProtoFam maps an address family to its v1 token. Only INET and INET6 have one.
func v1ProtoFam(f AddrFamily) (V1ProtoFam, bool) {
	switch f {
	case AddrFamilyInet:
		return V1ProtoFamTCP4, true
	case AddrFamilyInet6:
		return V1ProtoFamTCP6, true
	}
	return "", false
}

// Family returns the address family named by the token.
func (p V1ProtoFam) Family() AddrFamily {
	switch p {
	case V1ProtoFamTCP4:
		return AddrFamilyInet
	case V1ProtoFamTCP6:
		return AddrFamilyInet6
	}
	return AddrFamilyUnspec
}
