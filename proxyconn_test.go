package proxyhdr

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeTransport records everything written to it.
type fakeTransport struct {
	local, remote net.Addr

	buf      bytes.Buffer
	writes   int
	failNext error
	maxWrite int
	stall    bool
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		local:  &net.TCPAddr{IP: net.ParseIP("1.1.1.1"), Port: 1000},
		remote: &net.TCPAddr{IP: net.ParseIP("2.2.2.2"), Port: 2000},
	}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.writes++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, err
	}
	if f.stall {
		return 0, nil
	}
	if f.maxWrite > 0 && len(p) > f.maxWrite {
		p = p[:f.maxWrite]
	}
	return f.buf.Write(p)
}

func (f *fakeTransport) LocalAddr() net.Addr  { return f.local }
func (f *fakeTransport) RemoteAddr() net.Addr { return f.remote }
func (f *fakeTransport) Close() error         { f.closed = true; return nil }

func TestNewProxyConn(t *testing.T) {
	ft := newFakeTransport()

	c, err := NewProxyConn(ft, V1, nil)
	require.NoError(t, err)
	assert.Equal(t, V1, c.Version())
	assert.Nil(t, c.Source())
	assert.False(t, c.HeaderSent())
	assert.NoError(t, c.Close())
	assert.True(t, ft.closed)
	assert.Zero(t, ft.writes, "Close must not send a header")

	c, err = NewProxyConn(newFakeTransport(), V1, &Endpoint{IP: "1.1.1.1", Port: 100})
	require.NoError(t, err)
	assert.Equal(t, V1, c.Version())
	assert.Equal(t, &Endpoint{IP: "1.1.1.1", Port: 100}, c.Source())

	c, err = NewProxyConn(newFakeTransport(), V2, &Endpoint{IP: "2.2.2.2", Port: 200})
	require.NoError(t, err)
	assert.Equal(t, V2, c.Version())
	assert.Equal(t, "2.2.2.2", c.Source().IP)
	assert.Equal(t, 200, c.Source().Port)
}

func TestNewProxyConn_Invalid(t *testing.T) {
	ft := newFakeTransport()

	_, err := NewProxyConn(ft, Version(3), nil)
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.EqualError(t, err, `Invalid version "3"`)

	_, err = NewProxyConn(ft, V1, &Endpoint{IP: "1.1.1.1", Port: 70000})
	assert.ErrorIs(t, err, ErrInvalidSrcAddr)

	_, err = NewProxyConn(nil, V1, nil)
	assert.EqualError(t, err, "nil transport")
	for _, kind := range []error{ErrInvalidVersion, ErrInvalidSrcAddr, ErrInvalidFamily, ErrInvalidAddress, ErrMalformedHeader, ErrTransportWrite} {
		assert.NotErrorIs(t, err, kind)
	}

	assert.Zero(t, ft.writes)
}

func TestProxyConn_SourceIsImmutable(t *testing.T) {
	src := &Endpoint{IP: "7.7.7.7", Port: 777}
	c, err := NewProxyConn(newFakeTransport(), V1, src)
	require.NoError(t, err)

	src.Port = 1
	c.Source().Port = 2
	assert.Equal(t, &Endpoint{IP: "7.7.7.7", Port: 777}, c.Source())
}

func TestProxyConn_EmitHeader(t *testing.T) {
	const (
		srcIP   = "1.1.1.1"
		dstIP   = "2.2.2.2"
		srcPort = 1000
		dstPort = 2000
	)
	check := func(name string, v Version, src *Endpoint) {
		t.Run(name, func(t *testing.T) {
			ft := newFakeTransport()
			c, err := NewProxyConn(ft, v, src)
			require.NoError(t, err)

			expIP, expPort := srcIP, srcPort
			if src != nil {
				expIP, expPort = src.IP, src.Port
			}
			exp, err := Encode(v, AddrFamilyInet, expIP, dstIP, expPort, dstPort)
			require.NoError(t, err)

			require.NoError(t, c.EmitHeader())
			assert.NoError(t, c.Close())
			assert.Equal(t, exp, ft.buf.Bytes())
			assert.Equal(t, 1, ft.writes)
		})
	}

	custom := &Endpoint{IP: "7.7.7.7", Port: 777}
	check("v1-no-src", V1, nil)
	check("v1-with-src", V1, custom)
	check("v2-no-src", V2, nil)
	check("v2-with-src", V2, custom)
}

func TestProxyConn_EmitHeader_Bytes(t *testing.T) {
	ft := newFakeTransport()
	c, err := NewProxyConn(ft, V1, nil)
	require.NoError(t, err)
	require.NoError(t, c.EmitHeader())
	assert.Equal(t, "PROXY TCP4 1.1.1.1 2.2.2.2 1000 2000\r\n", ft.buf.String())

	ft = newFakeTransport()
	c, err = NewProxyConn(ft, V2, nil)
	require.NoError(t, err)
	require.NoError(t, c.EmitHeader())
	exp := []byte{
		0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A,
		0x21,
		0x11,
		0x00, 0x0C,
		1, 1, 1, 1,
		2, 2, 2, 2,
		0x03, 0xE8,
		0x07, 0xD0,
	}
	assert.Equal(t, exp, ft.buf.Bytes())

	ft = newFakeTransport()
	ft.local = &net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 1000}
	ft.remote = &net.TCPAddr{IP: net.ParseIP("2001:db8::2"), Port: 2000}
	c, err = NewProxyConn(ft, V1, nil)
	require.NoError(t, err)
	require.NoError(t, c.EmitHeader())
	assert.Equal(t, "PROXY TCP6 2001:db8::1 2001:db8::2 1000 2000\r\n", ft.buf.String())
}

func TestProxyConn_EmitHeaderOnce(t *testing.T) {
	ft := newFakeTransport()
	c, err := NewProxyConn(ft, V2, nil)
	require.NoError(t, err)

	require.NoError(t, c.EmitHeader())
	n := ft.buf.Len()
	require.NoError(t, c.EmitHeader())
	assert.True(t, c.HeaderSent())
	assert.Equal(t, 1, ft.writes)
	assert.Equal(t, n, ft.buf.Len())
}

func TestProxyConn_Write(t *testing.T) {
	ft := newFakeTransport()
	c, err := NewProxyConn(ft, V1, nil)
	require.NoError(t, err)

	n, err := c.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = c.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, "PROXY TCP4 1.1.1.1 2.2.2.2 1000 2000\r\nhello world", ft.buf.String())
}

func TestProxyConn_WriteFailure(t *testing.T) {
	ft := newFakeTransport()
	broken := errors.New("broken pipe")
	ft.failNext = broken
	c, err := NewProxyConn(ft, V1, nil)
	require.NoError(t, err)

	err = c.EmitHeader()
	assert.ErrorIs(t, err, ErrTransportWrite)
	assert.ErrorIs(t, err, broken)
	assert.False(t, c.HeaderSent())

	_, err = c.Write([]byte("data"))
	assert.NoError(t, err, "retry after the transport recovers")
	assert.True(t, c.HeaderSent())
	assert.Equal(t, "PROXY TCP4 1.1.1.1 2.2.2.2 1000 2000\r\ndata", ft.buf.String())
}

func TestProxyConn_ShortWrites(t *testing.T) {
	ft := newFakeTransport()
	ft.maxWrite = 5
	c, err := NewProxyConn(ft, V2, nil)
	require.NoError(t, err)

	require.NoError(t, c.EmitHeader())
	exp, err := Encode(V2, AddrFamilyInet, "1.1.1.1", "2.2.2.2", 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, exp, ft.buf.Bytes())
	assert.Equal(t, 6, ft.writes)

	ft = newFakeTransport()
	ft.stall = true
	c, err = NewProxyConn(ft, V2, nil)
	require.NoError(t, err)
	err = c.EmitHeader()
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.ErrorIs(t, err, ErrTransportWrite)
	assert.False(t, c.HeaderSent())
}

func TestProxyConn_EncodeErrors(t *testing.T) {
	// IPv4 override on an IPv6 connection
	ft := newFakeTransport()
	ft.remote = &net.TCPAddr{IP: net.ParseIP("2001:db8::2"), Port: 2000}
	c, err := NewProxyConn(ft, V2, &Endpoint{IP: "7.7.7.7", Port: 777})
	require.NoError(t, err)
	err = c.EmitHeader()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.False(t, c.HeaderSent())
	assert.Zero(t, ft.writes)

	// malformed override IP is only caught at encode time
	c, err = NewProxyConn(newFakeTransport(), V1, &Endpoint{IP: "bogus", Port: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, c.EmitHeader(), ErrInvalidAddress)

	ft = newFakeTransport()
	ft.local = nil
	c, err = NewProxyConn(ft, V1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.EmitHeader(), ErrInvalidAddress)
}

func TestProxyConn_Logger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c, err := NewProxyConn(newFakeTransport(), V2, nil, WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, c.EmitHeader())

	entries := logs.FilterMessage("sent PROXY header").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "v2", fields["version"])
	assert.Equal(t, "1.1.1.1:1000", fields["src"])
	assert.Equal(t, int64(28), fields["bytes"])
}
