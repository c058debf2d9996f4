package activitypub

import (
	"log"
	"strings"

	"github.com/loxodon-net/loxodon/util"
	"golang.org/x/net/idna"
)

// Gate decides which remote hosts this server federates with. In blocklist
// mode everything is allowed except listed hosts; in allowlist mode only
// listed hosts get through. A listed host also covers its subdomains.
type Gate struct {
	mode    string
	allowed map[string]struct{}
	blocked map[string]struct{}
}

// NewGate builds a gate from the federation section of the config. Hosts
// that fail normalization are dropped with a warning rather than silently
// punching a hole in the policy.
func NewGate(conf util.FederationConf) *Gate {
	g := &Gate{
		mode:    conf.Mode,
		allowed: make(map[string]struct{}),
		blocked: make(map[string]struct{}),
	}
	for _, h := range conf.AllowedHosts {
		norm, err := NormalizeHost(h)
		if err != nil {
			log.Printf("Gate: dropping unparseable allowed host %q: %v", h, err)
			continue
		}
		g.allowed[norm] = struct{}{}
	}
	for _, h := range conf.BlockedHosts {
		norm, err := NormalizeHost(h)
		if err != nil {
			log.Printf("Gate: dropping unparseable blocked host %q: %v", h, err)
			continue
		}
		g.blocked[norm] = struct{}{}
	}
	return g
}

// NormalizeHost lowercases a hostname, strips any port and trailing dot, and
// converts unicode labels to their punycode form so that visually distinct
// spellings of the same host compare equal.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(strings.ToLower(host))
	host = strings.TrimSuffix(host, ".")
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host, "]") {
		// host:port, but leave bracketed IPv6 literals alone
		if !strings.Contains(host[i+1:], ":") {
			host = host[:i]
		}
	}
	return idna.Lookup.ToASCII(host)
}

// ShouldBlock reports whether federation with the given host is forbidden.
// An empty host (a local user) is never blocked.
func (g *Gate) ShouldBlock(host string) bool {
	if host == "" {
		return false
	}
	norm, err := NormalizeHost(host)
	if err != nil {
		// Cannot be matched against the policy, refuse it
		return true
	}
	if g.mode == util.FederationModeAllowlist {
		return !g.matches(g.allowed, norm)
	}
	return g.matches(g.blocked, norm)
}

func (g *Gate) matches(set map[string]struct{}, host string) bool {
	if _, ok := set[host]; ok {
		return true
	}
	for i := strings.Index(host, "."); i != -1; i = strings.Index(host, ".") {
		host = host[i+1:]
		if _, ok := set[host]; ok {
			return true
		}
	}
	return false
}
