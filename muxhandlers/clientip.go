package muxhandlers

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// ErrInvalidProxy is returned when a TrustedProxies entry is neither an IP
// address nor a CIDR prefix.
var ErrInvalidProxy = errors.New("client ip: invalid proxy entry")

// ClientIPKey is the context key under which the resolved client address is
// stored.
const ClientIPKey = "muxhandlers.client_ip"

// DefaultTrustedProxies lists loopback and private ranges.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

// ClientIPConfig configures the client IP stage.
type ClientIPConfig struct {
	// TrustedProxies lists peers whose X-Forwarded-For and X-Real-IP headers
	// are honoured. Defaults to DefaultTrustedProxies.
	TrustedProxies []string
}

// ClientIPStage returns a stage that resolves the client address, honouring
// forwarding headers only from trusted peers, and stores it for ClientIP.
func ClientIPStage(cfg ClientIPConfig) (mux.StageFunc, error) {
	entries := cfg.TrustedProxies
	if len(entries) == 0 {
		entries = DefaultTrustedProxies
	}

	trusted := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		p, err := parseProxy(entry)
		if err != nil {
			return nil, err
		}
		trusted = append(trusted, p)
	}

	return func(c *mux.Context) mux.Result {
		peer := peerAddr(c.Request.RemoteAddr)
		if !peer.IsValid() {
			c.Set(ClientIPKey, c.Request.RemoteAddr)
			return mux.Next()
		}

		ip := peer.String()

		if isTrusted(trusted, peer) {
			if fwd := forwardedFor(c.Request.Header.Get("X-Forwarded-For")); fwd.IsValid() {
				ip = fwd.String()
			} else if realIP, err := netip.ParseAddr(strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))); err == nil {
				ip = realIP.String()
			}
		}

		c.Set(ClientIPKey, ip)

		return mux.Next()
	}, nil
}

// ClientIP returns the address resolved by ClientIPStage, falling back to the
// peer address of the connection.
func ClientIP(c *mux.Context) string {
	if v, ok := c.Get(ClientIPKey); ok {
		if ip, ok := v.(string); ok && ip != "" {
			return ip
		}
	}

	if addr := peerAddr(c.Request.RemoteAddr); addr.IsValid() {
		return addr.String()
	}

	return c.Request.RemoteAddr
}

func parseProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}
		return p.Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
	}

	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func peerAddr(remoteAddr string) netip.Addr {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}

	return addr.Unmap()
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

// forwardedFor returns the leftmost valid address of an X-Forwarded-For
// value.
func forwardedFor(xff string) netip.Addr {
	for part := range strings.SplitSeq(xff, ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
			return addr
		}
	}

	return netip.Addr{}
}
