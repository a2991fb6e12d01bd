package provider

import (
	"fmt"
	"net"
	"net/url"

	"callguard/pkg/resilience"
)

// validateScrapeURL checks whether a URL is safe to fetch. It rejects
// non-HTTP schemes and, when denyPrivateIPs is set, hostnames that
// resolve to loopback, private, or link-local addresses. Rejections
// classify as validation failures so the execution layer never retries
// them; only the DNS lookup itself can fail as a retryable network
// error.
func validateScrapeURL(rawURL string, denyPrivateIPs bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &resilience.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("invalid URL format: %v", err),
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &resilience.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("unsupported scheme %q (only http/https allowed)", u.Scheme),
		}
	}

	if u.Hostname() == "" {
		return &resilience.ValidationError{
			Field:   "url",
			Message: "URL has no hostname",
		}
	}

	if !denyPrivateIPs {
		return nil
	}

	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return &resilience.NetworkError{
			Op:  "dns lookup for " + u.Hostname(),
			Err: err,
		}
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return &resilience.ValidationError{
				Field:   "url",
				Message: fmt.Sprintf("hostname '%s' resolves to private IP %s", u.Hostname(), ip),
			}
		}
	}

	return nil
}

// isPrivateIP reports whether an IP belongs to loopback, RFC 1918
// private, or link-local ranges.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
