package xnetip

import (
	"encoding/binary"
	"net/netip"
)

// AddrToUint32 returns the numeric (host-order uint32) form of an IPv4
// address, as carried in IPv4 and ARP wire headers.
func AddrToUint32(addr netip.Addr) uint32 {
	v4 := addr.As4()
	return binary.BigEndian.Uint32(v4[:])
}

// AddrFromUint32 builds an IPv4 address from its numeric form.
func AddrFromUint32(v uint32) netip.Addr {
	var v4 [4]byte
	binary.BigEndian.PutUint32(v4[:], v)
	return netip.AddrFrom4(v4)
}

// LastAddr returns the last address covered by an IPv4 prefix, which for
// prefixes shorter than /31 is the subnet broadcast address.
func LastAddr(prefix netip.Prefix) netip.Addr {
	addrBits := AddrToUint32(prefix.Addr())
	wildcardBits := uint32(1<<(32-prefix.Bits()) - 1)
	return AddrFromUint32(addrBits | wildcardBits)
}
