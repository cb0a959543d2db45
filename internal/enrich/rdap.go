package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// RDAPClient queries an RDAP bootstrap service for IP network records.
type RDAPClient struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRDAPClient creates a client for baseURL (e.g. https://rdap.org).
func NewRDAPClient(baseURL, userAgent string, timeout time.Duration, httpClient *http.Client) *RDAPClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &RDAPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// RDAPNetwork is the subset of an RDAP ip network object we read.
type RDAPNetwork struct {
	Handle  string `json:"handle"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Network fetches the RDAP network record covering addr.
func (c *RDAPClient) Network(ctx context.Context, addr string) (RDAPNetwork, error) {
	var network RDAPNetwork
	err := getJSON(ctx, c.httpClient, c.baseURL+"/ip/"+addr, c.userAgent, "application/rdap+json", c.timeout, &network)
	if err != nil {
		return network, fmt.Errorf("rdap lookup %s: %w", addr, err)
	}
	return network, nil
}

// OriginResolver answers which autonomous system announces an address.
type OriginResolver interface {
	Origin(ctx context.Context, addr string) (Origin, error)
}

// WhoisRegistry combines an RDAP network lookup with an ASN origin lookup
// into one ownership record.
type WhoisRegistry struct {
	rdap   *RDAPClient
	origin OriginResolver
}

// NewWhoisRegistry creates a Registry. origin may be nil, in which case the
// ASN is reported as "Unknown".
func NewWhoisRegistry(rdap *RDAPClient, origin OriginResolver) *WhoisRegistry {
	return &WhoisRegistry{rdap: rdap, origin: origin}
}

// Lookup implements Registry. An address with no announced origin keeps the
// ASN "Unknown"; any other failure is an error.
func (r *WhoisRegistry) Lookup(ctx context.Context, addr string) (model.Ownership, error) {
	if _, err := netip.ParseAddr(addr); err != nil {
		return model.Ownership{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	network, err := r.rdap.Network(ctx, addr)
	if err != nil {
		return model.Ownership{}, err
	}

	own := model.Ownership{ASN: "Unknown", Org: network.Name, Country: "XX"}
	if own.Org == "" {
		own.Org = "Unknown"
	}
	if network.Country != "" {
		own.Country = network.Country
	}

	if r.origin != nil {
		origin, err := r.origin.Origin(ctx, addr)
		switch {
		case err == nil:
			own.ASN = origin.ASN
			if origin.Country != "" {
				own.Country = origin.Country
			}
		case errors.Is(err, ErrNotFound):
		default:
			return model.Ownership{}, err
		}
	}
	return own, nil
}
