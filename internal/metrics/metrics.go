// Package metrics holds the Prometheus collectors exported by the PROXY receiving commands.
package metrics

import (
	"io"
	"net"

	"github.com/mastercactapus/proxyhdr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var ConnectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "proxyhdr_connections_total",
		Help: "Total number of connections accepted by a listener",
	},
	[]string{"listener", "wrapped"},
)

var HeadersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "proxyhdr_headers_total",
		Help: "Total number of PROXY headers received",
	},
	[]string{"version", "family"},
)

var HeaderErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "proxyhdr_header_errors_total",
		Help: "Total number of connections whose PROXY header could not be read",
	},
	[]string{"reason"},
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ConnectionsTotal, HeadersTotal, HeaderErrorsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveHeader records the outcome of reading a PROXY header.
func ObserveHeader(h proxyhdr.Header, err error) {
	if err != nil {
		HeaderErrorsTotal.WithLabelValues(errorReason(err)).Inc()
		return
	}
	family := h.Family.String()
	if h.Local {
		family = "LOCAL"
	}
	HeadersTotal.WithLabelValues(h.Version.String(), family).Inc()
}

// errorReason labels a header error by its cause: timeout, empty (peer sent
// nothing), truncated (peer stopped mid-header), io (transport failure) or malformed.
func errorReason(err error) string {
	var (
		hdrErr *proxyhdr.InvalidHeaderErr
		netErr net.Error
		opErr  *net.OpError
	)
	read := -1
	if errors.As(err, &hdrErr) {
		read = len(hdrErr.Read)
	}

	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if read == 0 {
			return "empty"
		}
		return "truncated"
	case errors.As(err, &opErr) || errors.Is(err, io.ErrClosedPipe):
		return "io"
	case errors.Is(err, proxyhdr.ErrMalformedHeader):
		return "malformed"
	}
	return "io"
}
