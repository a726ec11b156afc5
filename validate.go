package proxyhdr

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// ValidateVersion returns an *InvalidVersionErr unless v is V1 or V2.
func ValidateVersion(v Version) error {
	switch v {
	case V1, V2:
		return nil
	}
	return &InvalidVersionErr{Value: strconv.Itoa(int(v))}
}

// ValidatePort checks that port fits in 16 bits.
func ValidatePort(port int) error {
	if port < 0 || port > 0xffff {
		return errors.Wrapf(ErrInvalidAddress, "port %d out of range 0-65535", port)
	}
	return nil
}

// ValidateSrcAddr normalizes a source address override.
//
// A nil value means no override and returns nil. Endpoint, *Endpoint and
// *net.TCPAddr are taken as-is, and a two element list of (ip, port) is
// accepted as decoded from config files. The IP is any string; its syntax
// is checked when the header is encoded. The port must be an integer in
// the range 0-65535.
func ValidateSrcAddr(v interface{}) (*Endpoint, error) {
	var ip string
	var port interface{}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Endpoint:
		if t == nil {
			return nil, nil
		}
		ip, port = t.IP, t.Port
	case Endpoint:
		ip, port = t.IP, t.Port
	case *net.TCPAddr:
		if t == nil || t.IP == nil {
			return nil, &InvalidSrcAddrErr{Value: v}
		}
		ip, port = t.IP.String(), t.Port
	case []interface{}:
		if len(t) != 2 {
			return nil, &InvalidSrcAddrErr{Value: v}
		}
		s, ok := t[0].(string)
		if !ok {
			return nil, &InvalidSrcAddrErr{Value: v}
		}
		ip, port = s, t[1]
	default:
		return nil, &InvalidSrcAddrErr{Value: v}
	}

	n, ok := asInt(port)
	if !ok {
		return nil, &InvalidSrcAddrErr{Value: v, Port: port, BadPort: true}
	}
	if n < 0 || n > 0xffff {
		return nil, &InvalidSrcAddrErr{Value: v, Port: port, OutOfRange: true}
	}
	return &Endpoint{IP: ip, Port: int(n)}, nil
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > 0xffff {
			return 0x10000, true
		}
		return int64(n), true
	case uint64:
		if n > 0xffff {
			return 0x10000, true
		}
		return int64(n), true
	}
	return 0, false
}
