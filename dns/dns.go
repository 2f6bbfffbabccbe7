// Package dns implements the resolver checks the proxy runs over its
// configuration: does a configured SIP host resolve at all, and which
// transports does its domain advertise per RFC 3263.
package dns

//go:generate errtrace -w .

import (
	"cmp"
	"context"
	"net"
	"net/netip"
	"slices"
	"time"

	"braces.dev/errtrace"
	"github.com/miekg/dns"

	"github.com/sipward/sipward/internal/errorutil"
	"github.com/sipward/sipward/internal/util"
)

const defQueryTimeout = 5 * time.Second

// ErrNoNameServer is returned when neither the resolver nor the system
// configuration name a DNS server to query.
const ErrNoNameServer errorutil.Error = "no DNS servers configured"

// Resolver answers the lookups the configuration sanity check needs.
// The zero value queries through the system resolver configuration.
type Resolver struct {
	// NameServer overrides the server used for raw record queries
	// (e.g. "192.0.2.53" or "192.0.2.53:5353"). Host lookups always go
	// through the system resolver.
	NameServer string
	// Timeout bounds one query; zero means 5 seconds.
	Timeout time.Duration

	hosts net.Resolver
}

// LookupAddrs resolves a host name to its addresses, IPv4-mapped
// forms unmapped.
func (r *Resolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	ips, err := r.hosts.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	return addrs, nil
}

// Service is one SIP transport a domain advertises through its NAPTR
// records (RFC 3263 Section 4.1).
type Service struct {
	// Transport is the advertised transport: "UDP", "TCP", "SCTP" or
	// "TLS".
	Transport string
	// Secured is true for SIPS services.
	Secured bool
	// Target is the replacement domain the record points at for the
	// subsequent SRV lookup.
	Target string
	// Order and Preference keep the RFC 3403 processing order.
	Order      uint16
	Preference uint16
}

// naptrServices maps the NAPTR service tokens of RFC 3263 Section 4.1
// to transports. Anything else in the answer is not a SIP service.
var naptrServices = map[string]Service{
	"SIP+D2U":  {Transport: "UDP"},
	"SIP+D2T":  {Transport: "TCP"},
	"SIP+D2S":  {Transport: "SCTP"},
	"SIPS+D2T": {Transport: "TLS", Secured: true},
}

// LookupServices queries the NAPTR records of a domain and distills
// the SIP services out of them, ordered by Order then Preference. An
// empty result with a nil error means the domain answered but
// advertises no SIP transports.
func (r *Resolver) LookupServices(ctx context.Context, domain string) ([]Service, error) {
	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), dns.TypeNAPTR)
	query.RecursionDesired = true

	server, err := r.server()
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defQueryTimeout
	}
	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, query, server)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, errtrace.Wrap(&net.DNSError{
			Err:        dns.RcodeToString[resp.Rcode],
			Name:       domain,
			IsNotFound: resp.Rcode == dns.RcodeNameError,
		})
	}

	var svcs []Service
	for _, answer := range resp.Answer {
		rr, ok := answer.(*dns.NAPTR)
		if !ok {
			continue
		}
		svc, ok := naptrServices[util.UCase(rr.Service)]
		if !ok {
			continue
		}
		svc.Target = rr.Replacement
		svc.Order = rr.Order
		svc.Preference = rr.Preference
		svcs = append(svcs, svc)
	}

	slices.SortStableFunc(svcs, func(a, b Service) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Preference, b.Preference)
	})
	return svcs, nil
}

// server picks the name server for raw record queries: the configured
// override first, the system resolver configuration otherwise.
func (r *Resolver) server() (string, error) {
	if r.NameServer != "" {
		if _, _, err := net.SplitHostPort(r.NameServer); err != nil {
			return net.JoinHostPort(r.NameServer, "53"), nil //nolint:nilerr
		}
		return r.NameServer, nil
	}

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", errtrace.Wrap(err)
	}
	if len(conf.Servers) == 0 {
		return "", errtrace.Wrap(ErrNoNameServer)
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

var defaultResolver = &Resolver{}

// DefaultResolver returns the process-wide resolver with default
// settings.
func DefaultResolver() *Resolver { return defaultResolver }
