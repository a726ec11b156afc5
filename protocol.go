package proxyhdr

// Proto indicates the transport protocol, encoded in the low nibble of the
// 14th byte of a version 2 header.
type Proto byte

const (
	// ProtoUnspec indicates the connection is forwarded for an unknown, unspecified or unsupported protocol.
	ProtoUnspec Proto = 0x00

	// ProtoStream indicates the forwarded connection uses a SOCK_STREAM protocol (eg: TCP or UNIX_STREAM).
	ProtoStream Proto = 0x01

	// ProtoDGram indicates the forwarded connection uses a SOCK_DGRAM protocol (eg: UDP or UNIX_DGRAM).
	// Only TCP is encoded; DGRAM headers are rejected by the decoder.
	ProtoDGram Proto = 0x02
)

func (p Proto) String() string {
	switch p {
	case ProtoUnspec:
		return "UNSPEC"
	case ProtoStream:
		return "STREAM"
	case ProtoDGram:
		return "DGRAM"
	}
	return "UNKNOWN"
}

// famProto packs an address family and transport protocol into one byte.
func famProto(f AddrFamily, p Proto) byte { return (byte(f) << 4) | (0xf & byte(p)) }
