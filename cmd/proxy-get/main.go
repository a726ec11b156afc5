package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/mastercactapus/proxyhdr"
	"github.com/mastercactapus/proxyhdr/internal/config"
	"go.uber.org/zap"
)

func newLogger(verbose bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

func main() {
	cfgFile := flag.String("config", "", "Optional YAML config file (version, src_addr, timeout).")
	version := flag.String("v", "", "PROXY protocol version to send (1 or 2). Set to `0` to disable the PROXY header.")
	src := flag.String("src", "", "Source address to send in the header, as ip:port. Defaults to the connection's local address.")
	verbose := flag.Bool("verbose", false, "Enable debug logging.")
	flag.Parse()

	log := newLogger(*verbose)
	defer log.Sync()

	cfg := config.DefaultClient()
	if *cfgFile != "" {
		if err := config.LoadFile(*cfgFile, &cfg); err != nil {
			log.Fatal("load config", zap.Error(err))
		}
	}

	source, err := cfg.Source()
	if err != nil {
		log.Fatal("invalid src_addr", zap.Error(err))
	}
	if *src != "" {
		e, err := proxyhdr.ParseEndpoint(*src)
		if err != nil {
			log.Fatal("invalid -src", zap.String("src", *src), zap.Error(err))
		}
		source = &e
	}

	disabled := *version == "0"
	if *version != "" && !disabled {
		cfg.Version, err = proxyhdr.ParseVersion(*version)
		if err != nil {
			log.Fatal("invalid -v", zap.Error(err))
		}
	}

	if flag.NArg() != 1 {
		log.Fatal("usage: proxy-get [flags] URL")
	}

	netDialer := &net.Dialer{Timeout: cfg.Timeout}
	if !disabled {
		d := &proxyhdr.Dialer{
			Version: cfg.Version,
			Source:  source,
			Dialer:  netDialer,
			Logger:  log,
		}
		http.DefaultClient.Transport = &http.Transport{
			DialContext:       d.DialContext,
			DisableKeepAlives: true,
		}
		log.Debug("sending PROXY header", zap.Stringer("version", cfg.Version), zap.Any("src", source))
	} else {
		http.DefaultClient.Transport = &http.Transport{DialContext: netDialer.DialContext}
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, flag.Arg(0), nil)
	if err != nil {
		log.Fatal("build request", zap.Error(err))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("request failed", zap.Error(err))
	}
	defer resp.Body.Close()
	log.Info("response", zap.Int("status", resp.StatusCode), zap.String("statusText", resp.Status))
	io.Copy(os.Stdout, resp.Body)
}
