package urlfetch

import "net/netip"

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("fec0::/10"),
}

// IsPublicAddr reports whether addr may be fetched from: not unspecified,
// loopback, link-local, private (RFC 1918, RFC 4193 or site-local) or
// multicast. IPv4-mapped IPv6 addresses are judged as IPv4.
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return false
	}
	if addr.IsUnspecified() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsPrivate() {
		return false
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr.WithZone("")) {
			return false
		}
	}
	return true
}
