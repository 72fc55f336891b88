package sfsquery

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// prefixSet is a set of IP prefixes optimized for lookup.
// It is built once and only read afterwards, so no locking is needed.
type prefixSet struct {
	trie *bart.Lite
}

// newPrefixSet parses the given CIDR strings. It panics on a malformed
// prefix, since the tables are package constants.
func newPrefixSet(cidrs ...string) *prefixSet {
	t := new(bart.Lite)
	for _, c := range cidrs {
		t.Insert(netip.MustParsePrefix(c))
	}
	return &prefixSet{trie: t}
}

// contains returns true if ip is within any prefix in the set.
// IPv4-mapped IPv6 addresses (::ffff:x.x.x.x) are unmapped before lookup,
// so they match IPv4 prefixes.
func (ps *prefixSet) contains(ip netip.Addr) bool {
	// bart requires native addresses
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	return ps.trie.Lookup(ip)
}
