package common

import "net/netip"

// IsLocalAddr reports whether ip is empty, unparsable, loopback, private or link-local.
// Such addresses cannot be geolocated by IP.
func IsLocalAddr(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return true
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}
