package proxyhdr

import (
	"bufio"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn is the receiving side of the protocol: an accepted net.Conn whose peer
// is expected to send a PROXY header before any payload. The header is read
// on first use and overrides LocalAddr and RemoteAddr.
type Conn struct {
	net.Conn

	r    *bufio.Reader
	log  *zap.Logger
	seen func(Header, error)

	once sync.Once
	hdr  Header
	err  error

	// headerBy bounds the header read; userDeadline is the last read
	// deadline set by the caller, restored once the header is in.
	headerBy     time.Time
	userDeadline time.Time
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithConnLogger sets the logger used to report header reads.
func WithConnLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// OnHeader registers fn to be called once with the result of reading the header.
func OnHeader(fn func(Header, error)) ConnOption {
	return func(c *Conn) { c.seen = fn }
}

// NewConn wraps c. The header must arrive before deadline; a zero deadline
// waits indefinitely.
func NewConn(c net.Conn, deadline time.Time, opts ...ConnOption) *Conn {
	pc := &Conn{
		Conn:     c,
		r:        bufio.NewReader(c),
		log:      zap.NewNop(),
		headerBy: deadline,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// ProxyHeader returns the header received on the connection, reading it if necessary.
func (c *Conn) ProxyHeader() (Header, error) {
	c.once.Do(c.readHeader)
	return c.hdr, c.err
}

func (c *Conn) readHeader() {
	if !c.headerBy.IsZero() && (c.userDeadline.IsZero() || c.headerBy.Before(c.userDeadline)) {
		_ = c.Conn.SetReadDeadline(c.headerBy)
		defer func() { _ = c.Conn.SetReadDeadline(c.userDeadline) }()
	}

	c.hdr, c.err = Parse(c.r)
	if c.err != nil {
		c.log.Debug("PROXY header read failed",
			zap.Stringer("peer", c.Conn.RemoteAddr()),
			zap.Error(c.err),
		)
	} else {
		c.log.Debug("received PROXY header",
			zap.Stringer("peer", c.Conn.RemoteAddr()),
			zap.Stringer("version", c.hdr.Version),
			zap.Stringer("family", c.hdr.Family),
			zap.Bool("local", c.hdr.Local),
		)
	}
	if c.seen != nil {
		c.seen(c.hdr, c.err)
	}
}

// SetDeadline sets both deadlines on the underlying net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	c.userDeadline = t
	return c.Conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline on the underlying net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.userDeadline = t
	return c.Conn.SetReadDeadline(t)
}

// RemoteAddr returns the header's source endpoint, or the socket's remote
// address when the header is invalid or carries no addresses.
func (c *Conn) RemoteAddr() net.Addr {
	if hdr, err := c.ProxyHeader(); err == nil {
		if a := hdr.SourceAddr(); a != nil {
			return a
		}
	}
	return c.Conn.RemoteAddr()
}

// LocalAddr returns the header's destination endpoint, falling back like RemoteAddr.
func (c *Conn) LocalAddr() net.Addr {
	if hdr, err := c.ProxyHeader(); err == nil {
		if a := hdr.DestAddr(); a != nil {
			return a
		}
	}
	return c.Conn.LocalAddr()
}

// Read returns payload bytes following the header.
func (c *Conn) Read(p []byte) (int, error) {
	if _, err := c.ProxyHeader(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// WrapConn reads the header from c before returning. Unlike NewConn no
// deadline is applied; set one on c first if needed. On error c is returned
// unchanged along with the error.
func WrapConn(c net.Conn) (net.Conn, error) {
	pc := NewConn(c, time.Time{})
	if _, err := pc.ProxyHeader(); err != nil {
		return c, err
	}
	return pc, nil
}
