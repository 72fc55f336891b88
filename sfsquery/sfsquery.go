// Package sfsquery looks up IP addresses in the StopForumSpam database,
// either through its JSON web API or through its DNSBL zone.
//
// A Client is bound to one address. The lookup is deferred until the first
// accessor is called and runs at most once per Client, whether it succeeds
// or not; build a new Client to try again.
package sfsquery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

// DefaultReportWindowDays is the window used by callers that have no opinion.
const DefaultReportWindowDays = 7

const secondsPerDay = 86400

// Mode selects how a Client talks to StopForumSpam.
type Mode int

const (
	// ModeAPI queries the JSON web API. It is the default.
	ModeAPI Mode = iota
	// ModeDNSBL queries the DNSBL zone. IPv4 only; ASN and country are
	// never available in this mode.
	ModeDNSBL
)

func (m Mode) String() string {
	switch m {
	case ModeAPI:
		return "api"
	case ModeDNSBL:
		return "dnsbl"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "api" (or "http") and "dns" (or "dnsbl"), case-insensitively.
// The empty string selects ModeAPI.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "api", "http":
		return ModeAPI, nil
	case "dns", "dnsbl":
		return ModeDNSBL, nil
	default:
		return ModeAPI, fmt.Errorf("invalid mode: %q (expected api or dns)", s)
	}
}

// Result holds what StopForumSpam knows about an address.
type Result struct {
	// Raw is the unparsed response: the JSON body in API mode, the resolved
	// address or NotListed in DNSBL mode. Empty if nothing was received.
	Raw        string
	Appears    bool
	Confidence float64
	Frequency  int
	// LastSeen is the Unix time of the most recent report, or 0.
	LastSeen int64
	ASN      int
	Country  string
}

// Client looks up a single IP address.
type Client struct {
	ip  string
	cfg *config
	log *zap.SugaredLogger

	once   sync.Once
	ok     bool
	result Result
	err    error
}

// New returns a Client for ip. No network traffic happens until an accessor
// is called.
func New(ip string, opts ...Option) (*Client, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.log == nil {
		cfg.log = logging.Logger("sfsquery").Desugar().Sugar()
	}
	if cfg.endpoint == "" {
		cfg.endpoint = DefaultAPIEndpoint
	}
	if cfg.zone == "" {
		cfg.zone = DefaultDNSBLZone
	}
	if cfg.fetchers == nil {
		cfg.fetchers = DefaultFetchers()
	}
	if cfg.resolver == nil {
		cfg.resolver = net.DefaultResolver
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	initMetrics()

	return &Client{
		ip:  ip,
		cfg: cfg,
		log: cfg.log,
	}, nil
}

// ensureQueried runs the lookup on first use and reports whether it
// succeeded. A failed lookup counts as done and is not repeated.
func (c *Client) ensureQueried() bool {
	c.once.Do(func() {
		ctx := context.Background()

		var res Result
		var err error
		switch c.cfg.mode {
		case ModeDNSBL:
			res, err = c.dnsQuery(ctx)
		default:
			res, err = c.apiQuery(ctx)
		}

		c.result = res
		if err != nil {
			// Keep the raw payload but nothing derived from it.
			c.result = Result{Raw: res.Raw}
			c.err = err
			c.log.Debugw("lookup failed", "ip", c.ip, "mode", c.cfg.mode, "err", err)
		}
		c.ok = err == nil
		incQuery(c.cfg.mode, err)
	})
	return c.ok
}

// Query performs the lookup if it has not happened yet and returns the
// recorded error, if any.
func (c *Client) Query() error {
	c.ensureQueried()
	return c.err
}

// IP returns the address this Client looks up.
func (c *Client) IP() string { return c.ip }

// Mode returns the configured lookup mode.
func (c *Client) Mode() Mode { return c.cfg.mode }

// Result returns a copy of the lookup result.
func (c *Client) Result() Result {
	c.ensureQueried()
	return c.result
}

// RawResponse returns the unparsed response for the configured mode, or ""
// if none was received.
func (c *Client) RawResponse() string {
	c.ensureQueried()
	return c.result.Raw
}

// APIResponse returns the raw JSON body, or "" in DNSBL mode.
func (c *Client) APIResponse() string {
	if c.cfg.mode != ModeAPI {
		return ""
	}
	return c.RawResponse()
}

// DNSResponse returns the resolved DNSBL answer (NotListed when the address
// has no record), or "" in API mode.
func (c *Client) DNSResponse() string {
	if c.cfg.mode != ModeDNSBL {
		return ""
	}
	return c.RawResponse()
}

// Appears reports whether the address was ever reported. Reports may be
// years old; see WasReportedInPastDays.
func (c *Client) Appears() bool {
	c.ensureQueried()
	return c.result.Appears
}

// ASN returns the autonomous system number, or 0. Always 0 in DNSBL mode.
func (c *Client) ASN() int {
	c.ensureQueried()
	return c.result.ASN
}

// Confidence returns the likelihood score assigned by StopForumSpam.
func (c *Client) Confidence() float64 {
	c.ensureQueried()
	return c.result.Confidence
}

// Country returns the ISO country code, or "". Always "" in DNSBL mode.
func (c *Client) Country() string {
	c.ensureQueried()
	return c.result.Country
}

// Err returns the error recorded by the lookup, or nil.
func (c *Client) Err() error {
	c.ensureQueried()
	return c.err
}

// Frequency returns how many times the address was reported.
// The DNSBL caps this at 255.
func (c *Client) Frequency() int {
	c.ensureQueried()
	return c.result.Frequency
}

// LastSeen returns the Unix time of the most recent report, or 0.
func (c *Client) LastSeen() int64 {
	c.ensureQueried()
	return c.result.LastSeen
}

// WasReportedSince reports whether the address was reported after epoch.
func (c *Client) WasReportedSince(epoch int64) bool {
	c.ensureQueried()
	return c.result.Appears && c.result.LastSeen > epoch
}

// WasReportedInPastDays reports whether the address was reported in the last
// days days.
func (c *Client) WasReportedInPastDays(days int) bool {
	return c.WasReportedSince(c.cfg.now().Unix() - secondsPerDay*int64(days))
}
