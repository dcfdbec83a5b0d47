//go:build linux

package dataplane

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
)

// importKernelRoutes copies IPv4 routes from the kernel's main routing
// table into the router. A kernel route is taken only when its egress
// device name matches a configured interface; everything else is skipped.
func (m *DataPlane) importKernelRoutes() error {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("failed to list kernel routes: %w", err)
	}

	imported := 0
	for _, rt := range routes {
		kernelLink, err := netlink.LinkByIndex(rt.LinkIndex)
		if err != nil {
			continue
		}
		idx, ok := m.portByName[kernelLink.Attrs().Name]
		if !ok {
			continue
		}

		prefix := netip.PrefixFrom(netip.AddrFrom4([4]byte{}), 0)
		if rt.Dst != nil {
			addr, ok := netip.AddrFromSlice(rt.Dst.IP)
			if !ok {
				continue
			}
			ones, _ := rt.Dst.Mask.Size()
			prefix = netip.PrefixFrom(addr.Unmap(), ones)
		}

		var nextHop netip.Addr
		if rt.Gw != nil {
			addr, ok := netip.AddrFromSlice(rt.Gw)
			if !ok {
				continue
			}
			nextHop = addr.Unmap()
		}

		m.router.AddRoute(prefix, nextHop, idx)
		imported++
	}

	m.log.Infof("imported %d routes from the kernel", imported)
	return nil
}
