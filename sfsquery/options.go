package sfsquery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds connect and total duration of API requests.
	DefaultTimeout = 3 * time.Second
	// DefaultAPIEndpoint is the API URL prefix; the target IP is appended.
	DefaultAPIEndpoint = "http://api.stopforumspam.org/api?json&ip="
	// DefaultDNSBLZone is the zone queried in DNSBL mode.
	DefaultDNSBLZone = "i.rbl.stopforumspam.org"
)

type config struct {
	mode     Mode
	endpoint string
	zone     string
	fetchers []Fetcher
	resolver Resolver
	log      *zap.SugaredLogger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*config) error

// WithMode selects API (default) or DNSBL querying.
func WithMode(m Mode) Option {
	return func(cfg *config) error {
		if m != ModeAPI && m != ModeDNSBL {
			return fmt.Errorf("unknown mode: %d", m)
		}
		cfg.mode = m
		return nil
	}
}

// WithAPIEndpoint overrides DefaultAPIEndpoint, e.g. to talk to a regional
// server. The target IP is appended verbatim.
func WithAPIEndpoint(endpoint string) Option {
	return func(cfg *config) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid API endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid API endpoint scheme: %q", u.Scheme)
		}
		cfg.endpoint = endpoint
		return nil
	}
}

// WithDNSBLZone overrides DefaultDNSBLZone.
func WithDNSBLZone(zone string) Option {
	return func(cfg *config) error {
		if _, ok := dns.IsDomainName(zone); !ok || zone == "" {
			return fmt.Errorf("invalid DNSBL zone: %q", zone)
		}
		cfg.zone = strings.TrimSuffix(strings.ToLower(zone), ".")
		return nil
	}
}

// WithFetchers replaces the ordered API fetcher chain. Fetchers are tried in
// the given order until one succeeds.
func WithFetchers(fetchers ...Fetcher) Option {
	return func(cfg *config) error {
		cfg.fetchers = append([]Fetcher{}, fetchers...)
		return nil
	}
}

// WithResolver sets the resolver used in DNSBL mode.
// By default [net.DefaultResolver] is used.
func WithResolver(r Resolver) Option {
	return func(cfg *config) error {
		if r == nil {
			return errors.New("resolver must not be nil")
		}
		cfg.resolver = r
		return nil
	}
}

// WithNameserver sends DNSBL queries straight to the given nameserver
// ("host" or "host:port", port 53 by default) instead of the system resolver.
func WithNameserver(addr string) Option {
	return func(cfg *config) error {
		if addr == "" {
			return errors.New("nameserver must not be empty")
		}
		cfg.resolver = newExchangeResolver(nameserverAddr(addr))
		return nil
	}
}

// WithResolvConf reads the first nameserver from a resolv.conf style file
// and behaves like WithNameserver.
func WithResolvConf(path string) Option {
	return func(cfg *config) error {
		conf, err := dns.ClientConfigFromFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if len(conf.Servers) == 0 {
			return fmt.Errorf("no nameserver in %s", path)
		}
		cfg.resolver = newExchangeResolver(net.JoinHostPort(conf.Servers[0], conf.Port))
		return nil
	}
}

// WithLogger sets the logger. By default the "sfsquery" go-log logger is used.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(cfg *config) error {
		cfg.log = log
		return nil
	}
}

// WithClock sets the time source for the report window. It is meant for testing.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) error {
		cfg.now = now
		return nil
	}
}
