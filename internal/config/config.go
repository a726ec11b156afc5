// Package config loads the YAML configuration files of the proxyhdr commands.
package config

import (
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/mastercactapus/proxyhdr"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Client configures a connection that sends PROXY headers.
type Client struct {
	Version proxyhdr.Version `yaml:"version"`

	// SrcAddr is an optional [ip, port] override for the header source.
	SrcAddr interface{}   `yaml:"src_addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Source validates SrcAddr.
func (c Client) Source() (*proxyhdr.Endpoint, error) {
	return proxyhdr.ValidateSrcAddr(c.SrcAddr)
}

// Rule is a subnet, in CIDR form or as a bare IP, whose peers must send a PROXY header.
type Rule struct {
	Subnet  string        `yaml:"subnet"`
	Timeout time.Duration `yaml:"timeout"`
}

// Server configures a listener that receives PROXY headers.
type Server struct {
	Listen     string `yaml:"listen"`
	Prometheus string `yaml:"prometheus"`
	Rules      []Rule `yaml:"rules"`
}

// ListenerRules converts the configured rules. A bare IP is treated as a single-host subnet.
func (s Server) ListenerRules() ([]proxyhdr.Rule, error) {
	res := make([]proxyhdr.Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		subnet, err := netip.ParsePrefix(r.Subnet)
		if err != nil {
			ip, ipErr := netip.ParseAddr(r.Subnet)
			if ipErr != nil {
				return nil, errors.Wrapf(err, "invalid rule subnet '%s'", r.Subnet)
			}
			subnet = netip.PrefixFrom(ip, ip.BitLen())
		}
		if r.Timeout < 0 {
			return nil, errors.Errorf("negative timeout for rule '%s'", r.Subnet)
		}
		res = append(res, proxyhdr.Rule{Subnet: subnet, Timeout: r.Timeout})
	}
	return res, nil
}

// DefaultClient sends v2 headers with the connection's real addresses.
func DefaultClient() Client {
	return Client{Version: proxyhdr.V2, Timeout: 10 * time.Second}
}

// DefaultServer accepts headers from any peer with a 5 second header timeout.
func DefaultServer() Server {
	return Server{
		Listen: ":8080",
		Rules: []Rule{
			{Subnet: "0.0.0.0/0", Timeout: 5 * time.Second},
			{Subnet: "::/0", Timeout: 5 * time.Second},
		},
	}
}

// LoadFile decodes the YAML file at name into v, which should hold defaults.
// Unknown keys are an error.
func LoadFile(name string, v interface{}) error {
	file, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "decode %s", name)
	}
	return nil
}
