package sfsquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// apiQuery performs the lookup against the JSON API. The returned Result
// carries the raw body whenever one was received, even if parsing failed.
func (c *Client) apiQuery(ctx context.Context) (Result, error) {
	if !IsValid(c.ip, true) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidTarget, c.ip)
	}

	u, err := url.Parse(c.cfg.endpoint + c.ip)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	body, err := c.fetch(ctx, u)
	if err != nil {
		return Result{}, err
	}

	raw := string(bytes.TrimSpace(body))
	res, err := parseAPIResponse([]byte(raw))
	res.Raw = raw
	return res, err
}

// fetch walks the fetcher chain and returns the first successful body.
func (c *Client) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	var errs []error
	for _, f := range c.cfg.fetchers {
		if !f.Supports(u) {
			continue
		}
		c.log.Debugw("fetching", "fetcher", f.Name(), "ip", c.ip)
		body, err := f.Fetch(ctx, u)
		incFetchAttempt(f.Name(), err)
		if err != nil {
			c.log.Warnw("fetch failed", "fetcher", f.Name(), "ip", c.ip, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		return body, nil
	}
	if len(errs) == 0 {
		return nil, ErrTransportUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, errors.Join(errs...))
}

// parseAPIResponse decodes an API payload of the form
//
//	{"success":1,"ip":{"lastseen":"...","frequency":12,"appears":1,
//	 "confidence":85.5,"country":"US","asn":15169}}
//
// Numeric fields may be JSON numbers or numeric strings. Fields that are
// absent, empty or of the wrong type keep their zero value.
func parseAPIResponse(raw []byte) (Result, error) {
	var answer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answer); err != nil || answer == nil {
		return Result{}, ErrMalformedResponse
	}

	if !truthy(answer["success"]) {
		return Result{}, ErrServiceFailure
	}

	var res Result
	var ip map[string]json.RawMessage
	if err := json.Unmarshal(answer["ip"], &ip); err != nil {
		// nothing to report on
		return res, nil
	}

	if s, ok := stringValue(ip["lastseen"]); ok && truthy(ip["lastseen"]) {
		if ts, ok := parseLastSeen(s); ok {
			res.LastSeen = ts
		}
	}
	if n, ok := intValue(ip["frequency"]); ok {
		res.Frequency = n
	}
	if truthy(ip["appears"]) {
		res.Appears = true
	}
	if f, ok := numeric(ip["confidence"]); ok {
		res.Confidence = f
	}
	if s, ok := stringValue(ip["country"]); ok && truthy(ip["country"]) {
		res.Country = s
	}
	if n, ok := intValue(ip["asn"]); ok {
		res.ASN = n
	}
	return res, nil
}

func decodeAny(v json.RawMessage) (any, bool) {
	if len(v) == 0 {
		return nil, false
	}
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return nil, false
	}
	return x, true
}

// truthy follows the loose truthiness the service relies on: 0, "0", "",
// false, null, empty arrays and empty objects are false.
func truthy(v json.RawMessage) bool {
	x, ok := decodeAny(v)
	if !ok {
		return false
	}
	switch t := x.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return false
	}
}

func stringValue(v json.RawMessage) (string, bool) {
	x, ok := decodeAny(v)
	if !ok {
		return "", false
	}
	s, ok := x.(string)
	return s, ok
}

var numericRe = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)

// numeric returns the value of a non-zero JSON number or numeric string.
func numeric(v json.RawMessage) (float64, bool) {
	x, ok := decodeAny(v)
	if !ok {
		return 0, false
	}
	var f float64
	switch t := x.(type) {
	case float64:
		f = t
	case string:
		if !numericRe.MatchString(t) {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// intValue is numeric truncated toward zero. Values outside the int32 range
// are rejected.
func intValue(v json.RawMessage) (int, bool) {
	f, ok := numeric(v)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
