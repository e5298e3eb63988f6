package webrtc

import (
	"net"
	"strings"
)

var cgnatBlock = &net.IPNet{
	IP:   net.IPv4(100, 64, 0, 0),
	Mask: net.CIDRMask(10, 32),
}

// vpnInterfaceHints are name fragments of tunnel adapters (OpenVPN tun/tap,
// WireGuard, PPP, Cloudflare WARP).
var vpnInterfaceHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether the host looks to be behind a VPN or
// carrier-grade NAT (100.64.0.0/10), where direct paths rarely work.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if isCGNAT(addr) {
				return true
			}
		}
	}
	return false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range vpnInterfaceHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func isCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip != nil && cgnatBlock.Contains(ip)
}
