package proxyhdr

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// Endpoint identifies one side of a connection.
type Endpoint struct {
	IP   string
	Port int
}

// String returns the endpoint in host:port form, bracketing IPv6 literals.
func (e Endpoint) String() string { return net.JoinHostPort(e.IP, strconv.Itoa(e.Port)) }

// TCPAddr converts the endpoint to a *net.TCPAddr. The IP is nil if it does not parse.
func (e Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(e.IP), Port: e.Port}
}

// EndpointFromAddr extracts an Endpoint from a TCP or UDP address. Other
// address types are accepted if their String form is host:port.
func EndpointFromAddr(a net.Addr) (Endpoint, error) {
	switch t := a.(type) {
	case nil:
		return Endpoint{}, errors.Wrap(ErrInvalidAddress, "no address")
	case *net.TCPAddr:
		if t.IP == nil {
			return Endpoint{}, errors.Wrapf(ErrInvalidAddress, "unspecified IP in %s", t)
		}
		return Endpoint{IP: t.IP.String(), Port: t.Port}, nil
	case *net.UDPAddr:
		if t.IP == nil {
			return Endpoint{}, errors.Wrapf(ErrInvalidAddress, "unspecified IP in %s", t)
		}
		return Endpoint{IP: t.IP.String(), Port: t.Port}, nil
	}
	e, err := ParseEndpoint(a.String())
	if err != nil {
		return Endpoint{}, errors.Wrapf(err, "%s address", a.Network())
	}
	return e, nil
}

// ParseEndpoint parses "ip:port" (or "[ip6]:port"). Host names are not resolved.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, errors.Wrapf(ErrInvalidAddress, "invalid port '%s'", portStr)
	}
	if err := ValidatePort(port); err != nil {
		return Endpoint{}, err
	}
	if net.ParseIP(host) == nil {
		return Endpoint{}, errors.Wrapf(ErrInvalidAddress, "invalid IP '%s'", host)
	}
	return Endpoint{IP: host, Port: port}, nil
}
