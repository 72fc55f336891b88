package sfsquery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// NotListed is the raw DNSBL response recorded when the zone has no record
// for the target.
const NotListed = "NXDOMAIN"

// listedOctet is the first octet of every answer for a listed address.
const listedOctet = 127

// Resolver resolves a hostname to its addresses. [*net.Resolver] satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// dnsQuery performs the lookup against the DNSBL zone.
func (c *Client) dnsQuery(ctx context.Context) (Result, error) {
	if !IsValid(c.ip, false) {
		return Result{}, fmt.Errorf("%w (IPv6 not supported): %q", ErrInvalidTarget, c.ip)
	}
	addr, err := netip.ParseAddr(c.ip)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	host := dnsblHost(addr, c.cfg.zone)
	c.log.Debugw("resolving", "host", host, "ip", c.ip)

	addrs, err := c.cfg.resolver.LookupHost(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Result{Raw: NotListed}, nil
		}
		return Result{}, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	// Some resolvers hand the query name back instead of failing, and the
	// system resolver mixes in AAAA answers.
	answer, found := firstIPv4(addrs)
	if !found {
		return Result{Raw: NotListed}, nil
	}

	res, ok := parseDNSBLAnswer(answer, c.cfg.now())
	if !ok {
		c.log.Debugw("unrecognized DNSBL answer", "host", host, "answer", answer)
	}
	return res, nil
}

// firstIPv4 returns the first IPv4 address in addrs.
func firstIPv4(addrs []string) (string, bool) {
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil && addr.Unmap().Is4() {
			return addr.Unmap().String(), true
		}
	}
	return "", false
}

// dnsblHost reverses the octets of an IPv4 address and appends zone,
// e.g. 188.35.167.7 becomes 7.167.35.188.<zone>.
func dnsblHost(addr netip.Addr, zone string) string {
	octets := addr.As4()
	slices.Reverse(octets[:])
	return netip.AddrFrom4(octets).String() + "." + zone
}

// parseDNSBLAnswer decodes a 127.F.D.C answer: F is the report frequency,
// D the days since the last report and C the confidence. Answers outside
// 127/8 are not understood; the raw answer is kept and ok is false.
func parseDNSBLAnswer(answer string, now time.Time) (res Result, ok bool) {
	res.Raw = answer
	addr, err := netip.ParseAddr(answer)
	if err != nil || !addr.Unmap().Is4() {
		return res, false
	}
	o := addr.Unmap().As4()
	if o[0] != listedOctet {
		return res, false
	}
	res.Appears = true
	res.Frequency = int(o[1])
	res.LastSeen = now.Unix() - 86400*int64(o[2])
	res.Confidence = float64(o[3])
	return res, true
}

// exchangeResolver sends A queries directly to one nameserver.
type exchangeResolver struct {
	client     *dns.Client
	nameserver string
}

func newExchangeResolver(nameserver string) *exchangeResolver {
	return &exchangeResolver{
		client: &dns.Client{
			Net:     "udp",
			Timeout: DefaultTimeout,
		},
		nameserver: nameserver,
	}
}

// LookupHost implements Resolver. NXDOMAIN and empty answers are reported as
// a not-found [*net.DNSError], like the system resolver does.
func (r *exchangeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
	if err != nil {
		var netErr net.Error
		timeout := errors.As(err, &netErr) && netErr.Timeout()
		return nil, &net.DNSError{Err: err.Error(), Name: host, Server: r.nameserver, IsTimeout: timeout}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: r.nameserver, IsNotFound: true}
	default:
		return nil, &net.DNSError{Err: "server replied " + dns.RcodeToString[resp.Rcode], Name: host, Server: r.nameserver}
	}

	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: r.nameserver, IsNotFound: true}
	}
	return addrs, nil
}

// nameserverAddr adds the default DNS port when addr has none.
func nameserverAddr(addr string) string {
	if _, err := netip.ParseAddrPort(addr); err == nil {
		return addr
	}
	if ip, err := netip.ParseAddr(strings.Trim(addr, "[]")); err == nil {
		return net.JoinHostPort(ip.String(), "53")
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "53")
}
