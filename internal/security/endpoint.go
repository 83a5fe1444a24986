package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// blockedHosts are names that commonly resolve to internal surfaces and
// are rejected outright, before any DNS work.
var blockedHosts = []string{"localhost", "metadata.google.internal", "metadata.google"}

// ValidateEndpointURL checks that a tenant-supplied integration endpoint
// is safe for the platform to call. Endpoints must use https and must not
// target loopback, private, or link-local addresses, whether given as an
// IP literal or reached through DNS.
func ValidateEndpointURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("endpoint is not a valid URL")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("endpoint must use https")
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("endpoint has no host")
	}

	for _, blocked := range blockedHosts {
		if strings.EqualFold(host, blocked) {
			return fmt.Errorf("endpoint host %q is not allowed", host)
		}
	}

	// IP literals are checked directly, no resolution needed.
	if ip := net.ParseIP(host); ip != nil {
		return checkEndpointIP(ip)
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("endpoint host %q does not resolve", host)
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil {
			if err := checkEndpointIP(ip); err != nil {
				return fmt.Errorf("endpoint host %q: %w", host, err)
			}
		}
	}
	return nil
}

func checkEndpointIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback addresses are not allowed")
	case ip.IsPrivate():
		return fmt.Errorf("private addresses are not allowed")
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local addresses are not allowed")
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified addresses are not allowed")
	}
	return nil
}
