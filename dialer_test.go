package proxyhdr

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialer(t *testing.T) {
	check := func(name string, d *Dialer, expSrc func(c net.Conn) string) {
		t.Run(name, func(t *testing.T) {
			nl, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			defer nl.Close()

			type result struct {
				hdr     Header
				payload string
				err     error
			}
			resCh := make(chan result, 1)
			go func() {
				c, err := nl.Accept()
				if err != nil {
					resCh <- result{err: err}
					return
				}
				defer c.Close()
				c.SetReadDeadline(time.Now().Add(time.Second))
				r := bufio.NewReader(c)
				hdr, err := Parse(r)
				if err != nil {
					resCh <- result{err: err}
					return
				}
				payload, err := io.ReadAll(r)
				resCh <- result{hdr: hdr, payload: string(payload), err: err}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			c, err := d.DialContext(ctx, "tcp", nl.Addr().String())
			require.NoError(t, err)
			src := expSrc(c)
			_, err = io.WriteString(c, "ping")
			require.NoError(t, err)
			require.NoError(t, c.Close())

			res := <-resCh
			require.NoError(t, res.err)
			assert.Equal(t, d.Version, res.hdr.Version)
			assert.Equal(t, AddrFamilyInet, res.hdr.Family)
			assert.Equal(t, src, res.hdr.Source.String())
			assert.Equal(t, nl.Addr().String(), res.hdr.Dest.String())
			assert.Equal(t, "ping", res.payload)
		})
	}

	local := func(c net.Conn) string { return c.LocalAddr().String() }
	check("v1", &Dialer{Version: V1}, local)
	check("v2", &Dialer{Version: V2, Dialer: &net.Dialer{Timeout: time.Second}}, local)
	check("v2-source", &Dialer{Version: V2, Source: &Endpoint{IP: "7.7.7.7", Port: 777}},
		func(net.Conn) string { return "7.7.7.7:777" })
}

func TestDialer_Errors(t *testing.T) {
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := nl.Addr().String()

	_, err = (&Dialer{Version: 7}).Dial("tcp", addr)
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = (&Dialer{Version: V1, Source: &Endpoint{IP: "::1", Port: 1}}).Dial("tcp", addr)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	require.NoError(t, nl.Close())
	_, err = (&Dialer{Version: V1}).Dial("tcp", addr)
	assert.Error(t, err)
}
