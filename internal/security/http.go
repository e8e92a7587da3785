// Package security contains request validation for outbound fetches made on
// behalf of the model.
package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// HTTP validates outbound request targets to prevent SSRF.
type HTTP struct {
	maxResponseSize int64
	allowedSchemes  []string
}

// NewHTTP creates an HTTP validator with default limits.
func NewHTTP() *HTTP {
	return &HTTP{
		maxResponseSize: 5 * 1024 * 1024, // 5MB
		allowedSchemes:  []string{"http", "https"},
	}
}

// ValidateURL checks protocol, hostname, and resolved addresses. It rejects
// internal networks and cloud metadata endpoints.
func (v *HTTP) ValidateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return fmt.Errorf("disallowed protocol: %s (only http/https allowed)", parsedURL.Scheme)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("invalid hostname")
	}

	if isDangerousHostname(hostname) {
		slog.Warn("SSRF attempt, dangerous hostname detected",
			"url", urlStr,
			"hostname", hostname,
			"security_event", "ssrf_dangerous_hostname")
		return fmt.Errorf("access denied: accessing internal networks or metadata services is not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("unable to resolve hostname: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			slog.Warn("SSRF attempt, private IP detected",
				"url", urlStr,
				"hostname", hostname,
				"resolved_ip", ip.String(),
				"security_event", "ssrf_private_ip")
			return fmt.Errorf("access denied: accessing internal network IPs is not allowed (%s)", ip.String())
		}
	}

	return nil
}

// MaxResponseSize returns the response size limit for fetched pages.
func (v *HTTP) MaxResponseSize() int64 {
	return v.maxResponseSize
}

// Client creates an HTTP client that re-validates every redirect target.
func (v *HTTP) Client() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			if err := v.ValidateURL(req.URL.String()); err != nil {
				slog.Warn("SSRF attempt, unsafe redirect detected",
					"redirect_url", req.URL.String(),
					"security_event", "ssrf_unsafe_redirect")
				return fmt.Errorf("redirect to unsafe URL: %w", err)
			}
			return nil
		},
	}
}

func isDangerousHostname(hostname string) bool {
	hostname = strings.ToLower(hostname)

	localHostnames := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
	}
	if slices.Contains(localHostnames, hostname) {
		return true
	}

	// Cloud metadata endpoints.
	metadataEndpoints := []string{
		"169.254.169.254",
		"metadata.google.internal",
		"metadata",
	}
	for _, endpoint := range metadataEndpoints {
		if hostname == endpoint || strings.Contains(hostname, endpoint) {
			return true
		}
	}

	return false
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
