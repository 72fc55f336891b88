package sfsquery

import (
	"net/netip"
)

var (
	privateRanges = newPrefixSet(
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
	)

	reservedRanges = newPrefixSet(
		"0.0.0.0/8",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"224.0.0.0/4", // multicast
		"240.0.0.0/4", // includes 255.255.255.255
		"::/128",
		"::1/128",
		"fe80::/10",
		"ff00::/8",
	)
)

// IsValid reports whether ip is a well-formed, publicly routable address that
// can be looked up. Private (RFC1918, ULA) and reserved ranges (loopback,
// link-local, multicast, broadcast, unspecified) are rejected. IPv6 addresses,
// including IPv4-mapped ones, are only accepted when allowIPv6 is set.
func IsValid(ip string, allowIPv6 bool) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Zone() != "" {
		return false
	}
	if !addr.Is4() && !allowIPv6 {
		return false
	}
	return !privateRanges.contains(addr) && !reservedRanges.contains(addr)
}
