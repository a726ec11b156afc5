package proxyhdr

import (
	"net"
	"net/netip"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Rule marks peers in Subnet as PROXY senders. IPv4 peers also match IPv6
// subnets containing their ::ffff:a.b.c.d form, so ::/0 matches every peer.
type Rule struct {
	Subnet netip.Prefix

	// Timeout bounds how long a peer may take to send its header. Zero means no limit.
	Timeout time.Duration
}

// Listener wraps connections from trusted subnets in a Conn. Peers outside
// every rule are returned as accepted.
type Listener struct {
	net.Listener

	log      *zap.Logger
	onHeader func(Header, error)

	rules []*Rule
	byPfx map[netip.Prefix]*Rule
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger handed to every wrapped Conn.
func WithListenerLogger(l *zap.Logger) ListenerOption {
	return func(ln *Listener) {
		if l != nil {
			ln.log = l
		}
	}
}

// WithHeaderHook calls fn with every header read by a wrapped Conn.
func WithHeaderHook(fn func(Header, error)) ListenerOption {
	return func(ln *Listener) { ln.onHeader = fn }
}

// NewListener wraps nl using rules.
func NewListener(nl net.Listener, rules []Rule, opts ...ListenerOption) *Listener {
	l := &Listener{
		Listener: nl,
		log:      zap.NewNop(),
		byPfx:    make(map[netip.Prefix]*Rule, len(rules)),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.AddRules(rules)
	return l
}

// Accept returns the next connection, wrapped with NewConn if its peer matches a rule.
func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	r := l.match(c.RemoteAddr())
	if r == nil {
		return c, nil
	}

	var deadline time.Time
	if r.Timeout > 0 {
		deadline = time.Now().Add(r.Timeout)
	}
	opts := []ConnOption{WithConnLogger(l.log)}
	if l.onHeader != nil {
		opts = append(opts, OnHeader(l.onHeader))
	}
	return NewConn(c, deadline, opts...), nil
}

func (l *Listener) match(a net.Addr) *Rule {
	var ip netip.Addr
	switch t := a.(type) {
	case *net.TCPAddr:
		ip = t.AddrPort().Addr()
	case *net.UDPAddr:
		ip = t.AddrPort().Addr()
	default:
		return nil
	}
	ip = ip.Unmap()
	mapped := ip
	if ip.Is4() {
		mapped = netip.AddrFrom16(ip.As16())
	}
	for _, r := range l.rules {
		if r.Subnet.Contains(ip) || r.Subnet.Contains(mapped) {
			return r
		}
	}
	return nil
}

// rulePrefix masks p and rewrites IPv4-mapped prefixes (::ffff:a.b.c.d/96 and
// longer) as plain IPv4 so both spellings merge into one rule.
func rulePrefix(p netip.Prefix) netip.Prefix {
	p = p.Masked()
	if p.Addr().Is4In6() && p.Bits() >= 96 {
		return netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
	}
	return p
}

// AddRules merges rules into the listener. Duplicate subnets keep the
// shortest non-zero timeout. Rules are matched most-specific first.
func (l *Listener) AddRules(rules []Rule) {
	for _, n := range rules {
		pfx := rulePrefix(n.Subnet)
		if s, ok := l.byPfx[pfx]; ok {
			if n.Timeout > 0 && (s.Timeout == 0 || n.Timeout < s.Timeout) {
				s.Timeout = n.Timeout
			}
			continue
		}

		r := &Rule{Subnet: pfx, Timeout: n.Timeout}
		l.byPfx[pfx] = r
		l.rules = append(l.rules, r)
	}

	sort.SliceStable(l.rules, func(i, j int) bool {
		a, b := l.rules[i].Subnet, l.rules[j].Subnet
		if a.Bits() != b.Bits() {
			return a.Bits() > b.Bits()
		}
		// same length: IPv6 before IPv4
		return a.Addr().BitLen() > b.Addr().BitLen()
	})
}
