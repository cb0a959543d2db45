package enrich

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Origin is one row of the Team Cymru IP-to-ASN mapping.
type Origin struct {
	ASN      string
	Prefix   string
	Country  string
	Registry string
}

const (
	cymruOriginV4 = "origin.asn.cymru.com."
	cymruOriginV6 = "origin6.asn.cymru.com."
	defaultDNS    = "1.1.1.1:53"
)

// CymruResolver maps addresses to origin ASNs over DNS TXT queries.
type CymruResolver struct {
	server string
	client *dns.Client
}

// NewCymruResolver creates a resolver querying server (host:port). An empty
// server uses the first nameserver from /etc/resolv.conf.
func NewCymruResolver(server string, timeout time.Duration) *CymruResolver {
	if server == "" {
		server = systemResolver()
	}
	return &CymruResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func systemResolver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return defaultDNS
	}
	return conf.Servers[0] + ":" + conf.Port
}

// Origin implements OriginResolver.
func (r *CymruResolver) Origin(ctx context.Context, addr string) (Origin, error) {
	qname, err := originQuery(addr)
	if err != nil {
		return Origin{}, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(qname, dns.TypeTXT)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return Origin{}, fmt.Errorf("cymru query %s: %w", qname, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return Origin{}, ErrNotFound
	}
	if resp.Rcode != dns.RcodeSuccess {
		return Origin{}, fmt.Errorf("cymru query %s: %s", qname, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		if origin, ok := parseOrigin(strings.Join(txt.Txt, "")); ok {
			return origin, nil
		}
	}
	return Origin{}, ErrNotFound
}

// originQuery builds the reversed query name for addr.
func originQuery(addr string) (string, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	rev, err := dns.ReverseAddr(ip.Unmap().String())
	if err != nil {
		return "", err
	}
	if ip.Unmap().Is4() {
		return strings.TrimSuffix(rev, "in-addr.arpa.") + cymruOriginV4, nil
	}
	return strings.TrimSuffix(rev, "ip6.arpa.") + cymruOriginV6, nil
}

// parseOrigin reads "13335 | 1.1.1.0/24 | AU | apnic | 2011-08-11". When
// several ASNs announce the prefix the first is kept.
func parseOrigin(txt string) (Origin, bool) {
	parts := strings.Split(txt, "|")
	if len(parts) < 3 {
		return Origin{}, false
	}
	asns := strings.Fields(parts[0])
	if len(asns) == 0 {
		return Origin{}, false
	}
	origin := Origin{
		ASN:     asns[0],
		Prefix:  strings.TrimSpace(parts[1]),
		Country: strings.TrimSpace(parts[2]),
	}
	if len(parts) > 3 {
		origin.Registry = strings.TrimSpace(parts[3])
	}
	return origin, true
}
