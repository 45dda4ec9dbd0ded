// Package safehttp provides an outbound transport for fetching user-supplied
// URLs. It refuses to connect to loopback, private and link-local addresses.
package safehttp

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// ErrDenied is returned when a connection targets a non-public address.
var ErrDenied = errors.New("access to non-public address denied")

// Allowed reports whether ip may be dialed.
func Allowed(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsUnspecified()
}

// control runs after DNS resolution and before connect, so a hostname that
// resolves to a private address is rejected too.
func control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("parse remote address %q: %w", address, err)
	}
	if !Allowed(ip) {
		return fmt.Errorf("%w: %s", ErrDenied, ip)
	}
	return nil
}

// NewTransport returns a clone of the default transport whose dialer rejects
// non-public addresses. Proxies are disabled so the check applies to the real
// destination.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}).DialContext
	return t
}
