package xnetip

import (
	"net/netip"
	"testing"
)

func TestAddrUint32RoundTrip(t *testing.T) {
	tests := []struct {
		addr    string
		numeric uint32
	}{
		{"0.0.0.0", 0},
		{"10.0.0.1", 0x0a000001},
		{"192.168.1.254", 0xc0a801fe},
		{"255.255.255.255", 0xffffffff},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			addr := netip.MustParseAddr(tt.addr)
			if got := AddrToUint32(addr); got != tt.numeric {
				t.Errorf("AddrToUint32(%s) = 0x%08x, want 0x%08x", tt.addr, got, tt.numeric)
			}
			if got := AddrFromUint32(tt.numeric); got != addr {
				t.Errorf("AddrFromUint32(0x%08x) = %s, want %s", tt.numeric, got, tt.addr)
			}
		})
	}
}

func TestLastAddr(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected string
	}{
		{
			name:     "entire IPv4 space",
			prefix:   "0.0.0.0/0",
			expected: "255.255.255.255",
		},
		{
			name:     "class A",
			prefix:   "10.0.0.0/8",
			expected: "10.255.255.255",
		},
		{
			name:     "class C",
			prefix:   "192.168.1.0/24",
			expected: "192.168.1.255",
		},
		{
			name:     "point-to-point",
			prefix:   "192.168.1.0/30",
			expected: "192.168.1.3",
		},
		{
			name:     "host route",
			prefix:   "192.168.1.7/32",
			expected: "192.168.1.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := netip.MustParsePrefix(tt.prefix)
			expected := netip.MustParseAddr(tt.expected)
			if got := LastAddr(prefix); got != expected {
				t.Errorf("LastAddr(%s) = %s, want %s", tt.prefix, got, expected)
			}
		})
	}
}
