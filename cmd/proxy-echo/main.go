package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"

	"github.com/mastercactapus/proxyhdr"
	"github.com/mastercactapus/proxyhdr/internal/config"
	"github.com/mastercactapus/proxyhdr/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type headerConn interface {
	ProxyHeader() (proxyhdr.Header, error)
}

// handle reports the addresses recovered from the PROXY header back to the client.
func handle(log *zap.Logger, listener string, c net.Conn) {
	defer c.Close()

	pc, wrapped := c.(headerConn)
	metrics.ConnectionsTotal.WithLabelValues(listener, fmt.Sprint(wrapped)).Inc()
	if !wrapped {
		log.Info("connection without PROXY rule", zap.Stringer("remote", c.RemoteAddr()))
		fmt.Fprintf(c, "remote=%s local=%s proxy=none\n", c.RemoteAddr(), c.LocalAddr())
		return
	}

	if p, ok := c.(*proxyhdr.Conn); ok {
		log = log.With(zap.Stringer("proxy", p.Conn.RemoteAddr()))
	}
	hdr, err := pc.ProxyHeader()
	if err != nil {
		log.Warn("read PROXY header", zap.Error(err))
		return
	}

	if authority, ok := hdr.TLV(proxyhdr.PP2TypeAuthority); ok {
		log = log.With(zap.ByteString("authority", authority))
	}
	log.Info("connection",
		zap.Stringer("version", hdr.Version),
		zap.Stringer("family", hdr.Family),
		zap.Bool("local", hdr.Local),
		zap.Stringer("remote", c.RemoteAddr()),
		zap.Stringer("local", c.LocalAddr()),
	)
	fmt.Fprintf(c, "remote=%s local=%s proxy=%s\n", c.RemoteAddr(), c.LocalAddr(), hdr.Version)
}

func serveMetrics(log *zap.Logger, addr string, reg *prometheus.Registry) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("Prometheus listener", zap.Error(err))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("Prometheus listener started", zap.String("addr", ln.Addr().String()))
	go func() {
		err := http.Serve(ln, mux)
		if err != nil {
			log.Fatal("serve Prometheus listener", zap.Error(err))
		}
	}()
}

func main() {
	cfgFile := flag.String("config", "", "Optional YAML config file (listen, prometheus, rules).")
	listen := flag.String("listen", "", "Address to listen on. Overrides the config file.")
	verbose := flag.Bool("verbose", false, "Enable debug logging.")
	flag.Parse()

	var log *zap.Logger
	var err error
	if *verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.DefaultServer()
	if *cfgFile != "" {
		if err := config.LoadFile(*cfgFile, &cfg); err != nil {
			log.Fatal("load config", zap.Error(err))
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	rules, err := cfg.ListenerRules()
	if err != nil {
		log.Fatal("invalid rules", zap.Error(err))
	}

	if cfg.Prometheus != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			log.Fatal("register metrics", zap.Error(err))
		}
		serveMetrics(log, cfg.Prometheus, reg)
	}

	nl, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	l := proxyhdr.NewListener(nl, rules,
		proxyhdr.WithListenerLogger(log.Named("proxy")),
		proxyhdr.WithHeaderHook(metrics.ObserveHeader),
	)
	log.Info("listening", zap.String("addr", nl.Addr().String()), zap.Int("rules", len(rules)))

	for {
		c, err := l.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			log.Warn("accept", zap.Error(err))
			continue
		}
		go handle(log, nl.Addr().String(), c)
	}
}
