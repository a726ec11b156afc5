package proxyhdr

// Command indicates the PROXY command being used in a version 2 header.
type Command byte

const (
	// CommandLocal indicates the connection was established on purpose by the proxy without being relayed.
	CommandLocal Command = 0x00

	// CommandProxy the connection was established on behalf of another node, and reflects the original connection endpoints.
	CommandProxy Command = 0x01
)

// verCmd packs the protocol version into the high nibble and the command into the low nibble.
func (c Command) verCmd() byte { return (2 << 4) | (0xf & byte(c)) }

func (c Command) String() string {
	switch c {
	case CommandLocal:
		return "LOCAL"
	case CommandProxy:
		return "PROXY"
	}
	return "UNKNOWN"
}
