package proxyhdr

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ContextDialer is implemented by *net.Dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Dialer connects to an address and sends a PROXY header before handing the
// connection to the caller.
type Dialer struct {
	Version Version

	// Source overrides the header's source endpoint. When nil the local
	// address of the new connection is used.
	Source *Endpoint

	// Dialer makes the underlying connection. A zero net.Dialer is used if nil.
	Dialer ContextDialer

	Logger *zap.Logger
}

// Dial connects to address on the named network and sends the header.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

// DialContext connects to address on the named network and sends the header.
// The connection is closed if the header cannot be sent.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	nd := d.Dialer
	if nd == nil {
		nd = &net.Dialer{}
	}

	c, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	pc, err := NewProxyConn(c, d.Version, d.Source, WithLogger(log.With(zap.String("addr", address))))
	if err != nil {
		c.Close()
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		c.SetWriteDeadline(dl)
	}
	err = pc.EmitHeader()
	if err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "send %s header", d.Version)
	}
	if _, ok := ctx.Deadline(); ok {
		c.SetWriteDeadline(time.Time{})
	}
	return c, nil
}
