// Package ipam implements the database-backed address pool allocator.
package ipam

import (
	"fmt"
	"net"
)

// HostAddresses expands a CIDR into its usable host addresses, excluding the
// network address, the broadcast address and any reserved addresses (such as
// the server's own tunnel address). The returned order is ascending.
func HostAddresses(cidr string, reserved ...string) ([]string, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid client network %q: %w", cidr, err)
	}

	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		if r != "" {
			skip[r] = true
		}
	}

	var out []string
	for ip := incrementIP(network.IP); network.Contains(ip); ip = incrementIP(ip) {
		if isBroadcast(ip, network) {
			break
		}
		if skip[ip.String()] {
			continue
		}
		out = append(out, ip.String())
	}

	return out, nil
}

// incrementIP returns the address one above ip.
func incrementIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}

// isBroadcast reports whether ip is the all-host-bits-set address of the
// network.
func isBroadcast(ip net.IP, network *net.IPNet) bool {
	broadcast := make(net.IP, len(network.IP))
	for i := range network.IP {
		broadcast[i] = network.IP[i] | ^network.Mask[i]
	}
	return ip.Equal(broadcast)
}
