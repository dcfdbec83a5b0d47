package router

import (
	"net/netip"
)

// mapTrie is a longest-prefix-match table over IPv4 prefixes with
// properties of a prefix trie but implemented using maps.
//
// It is an array of maps, where each index corresponds to a prefix length;
// 33 slots cover /0 through /32. Lookup probes lengths from most to least
// specific, so the first hit is the longest match.
type mapTrie[V any] [33]map[netip.Prefix]V

// newMapTrie returns an empty mapTrie.
func newMapTrie[V any]() mapTrie[V] {
	trie := mapTrie[V]{}

	for idx := range trie {
		trie[idx] = make(map[netip.Prefix]V)
	}

	return trie
}

// Lookup searches the trie for the value under the longest prefix
// containing addr.
//
// If no prefix matches, the function returns the zero value and false.
func (m *mapTrie[V]) Lookup(addr netip.Addr) (netip.Prefix, V, bool) {
	for bits := 32; bits >= 0; bits-- {
		prefix, err := addr.Prefix(bits)
		if err != nil {
			break
		}

		if value, ok := m[bits][prefix]; ok {
			return prefix, value, true
		}
	}

	var zeroPrefix netip.Prefix
	var zeroValue V
	return zeroPrefix, zeroValue, false
}

// InsertOrUpdate adds a new entry or updates an existing one.
//
// The prefix is normalized with masking first; a new value comes from the
// onEmpty callback, an existing one is transformed by onUpdate.
func (m *mapTrie[V]) InsertOrUpdate(prefix netip.Prefix, onEmpty func() V, onUpdate func(V) V) {
	prefix = prefix.Masked()
	bits := prefix.Bits()

	if currValue, ok := m[bits][prefix]; ok {
		m[bits][prefix] = onUpdate(currValue)
		return
	}

	m[bits][prefix] = onEmpty()
}

// Len returns the total number of prefixes stored in the trie.
func (m *mapTrie[V]) Len() int {
	l := 0
	for idx := range m {
		l += len(m[idx])
	}

	return l
}
