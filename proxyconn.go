package proxyhdr

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Transport is the part of an established connection a ProxyConn needs.
// Every net.Conn satisfies it.
type Transport interface {
	Write(p []byte) (int, error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// ProxyConn sends a PROXY header over an established connection before any
// payload. It does not own the Transport beyond forwarding Write and Close.
//
// A ProxyConn must not be used from multiple goroutines at once.
type ProxyConn struct {
	t       Transport
	version Version
	src     *Endpoint
	sent    bool
	log     *zap.Logger
}

// Option configures a ProxyConn.
type Option func(*ProxyConn)

// WithLogger sets the logger used to report header emission.
func WithLogger(l *zap.Logger) Option {
	return func(c *ProxyConn) {
		if l != nil {
			c.log = l
		}
	}
}

// NewProxyConn validates v and the optional source override and returns a
// ProxyConn for t. No I/O is performed.
//
// When src is nil the header's source is t.LocalAddr(); otherwise src is
// used for every header sent on this connection.
func NewProxyConn(t Transport, v Version, src *Endpoint, opts ...Option) (*ProxyConn, error) {
	if t == nil {
		return nil, errors.New("nil transport")
	}
	if err := ValidateVersion(v); err != nil {
		return nil, err
	}
	if src != nil {
		var err error
		src, err = ValidateSrcAddr(*src)
		if err != nil {
			return nil, err
		}
	}

	c := &ProxyConn{t: t, version: v, src: src, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Version returns the PROXY protocol version headers are sent with.
func (c *ProxyConn) Version() Version { return c.version }

// Source returns a copy of the source override, or nil if the transport's local address is used.
func (c *ProxyConn) Source() *Endpoint {
	if c.src == nil {
		return nil
	}
	src := *c.src
	return &src
}

// HeaderSent reports whether EmitHeader has completed successfully.
func (c *ProxyConn) HeaderSent() bool { return c.sent }

// Header builds the header that EmitHeader would send now.
func (c *ProxyConn) Header() (Header, error) {
	var src Endpoint
	if c.src != nil {
		src = *c.src
	} else {
		var err error
		src, err = EndpointFromAddr(c.t.LocalAddr())
		if err != nil {
			return Header{}, errors.Wrap(err, "local address")
		}
	}
	dst, err := EndpointFromAddr(c.t.RemoteAddr())
	if err != nil {
		return Header{}, errors.Wrap(err, "remote address")
	}
	return Header{
		Version: c.version,
		Family:  FamilyOf(src.IP),
		Source:  src,
		Dest:    dst,
	}, nil
}

// EmitHeader sends the PROXY header unless it was already sent, in which
// case it does nothing.
//
// If the transport fails the error is a *TransportWriteErr and the header
// is still considered unsent.
func (c *ProxyConn) EmitHeader() error {
	if c.sent {
		return nil
	}
	h, err := c.Header()
	if err != nil {
		return err
	}
	b, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if err := sendAll(c.t, b); err != nil {
		c.log.Debug("PROXY header write failed",
			zap.Stringer("version", c.version),
			zap.Error(err),
		)
		return err
	}
	c.sent = true
	c.log.Debug("sent PROXY header",
		zap.Stringer("version", c.version),
		zap.Stringer("family", h.Family),
		zap.Stringer("src", h.Source),
		zap.Stringer("dst", h.Dest),
		zap.Int("bytes", len(b)),
	)
	return nil
}

// Write sends p on the transport, sending the header first if needed.
func (c *ProxyConn) Write(p []byte) (int, error) {
	if err := c.EmitHeader(); err != nil {
		return 0, err
	}
	return c.t.Write(p)
}

// Close closes the transport. A header is never sent by Close.
func (c *ProxyConn) Close() error { return c.t.Close() }

// LocalAddr returns the transport's local address.
func (c *ProxyConn) LocalAddr() net.Addr { return c.t.LocalAddr() }

// RemoteAddr returns the transport's remote address.
func (c *ProxyConn) RemoteAddr() net.Addr { return c.t.RemoteAddr() }

func sendAll(w io.Writer, b []byte) error {
	var written int
	for written < len(b) {
		n, err := w.Write(b[written:])
		written += n
		if err != nil {
			return &TransportWriteErr{Err: err, Written: written}
		}
		if n == 0 {
			return &TransportWriteErr{Err: io.ErrShortWrite, Written: written}
		}
	}
	return nil
}
