package leads

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile mirrors browser host parsing: IDN labels become punycode, but
// underscores and other non-STD3 characters are tolerated.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

const forbiddenHostChars = " \t\r\n#/<>?@[\\]^|%"

var errInvalidHost = errors.New("invalid host")

// NormalizeWebsiteURL returns the canonical absolute form of a user-entered URL.
// Input that cannot be parsed is returned trimmed and otherwise unchanged.
func NormalizeWebsiteURL(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	candidate := trimmed
	if !hasHTTPScheme(candidate) {
		candidate = "https://" + candidate
	}

	canonical, err := canonicalURL(candidate)
	if err != nil {
		return &trimmed
	}
	return &canonical
}

// ExtractDomain returns the lower-cased hostname of the URL without a leading "www.".
func ExtractDomain(raw string) *string {
	normalized := NormalizeWebsiteURL(raw)
	if normalized == nil {
		return nil
	}

	if u, err := parseAbsolute(*normalized); err == nil {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host != "" {
			return &host
		}
	}

	domain := strings.ToLower(*normalized)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	if idx := strings.IndexAny(domain, "/?#"); idx >= 0 {
		domain = domain[:idx]
	}
	if domain == "" {
		return nil
	}
	return &domain
}

func hasHTTPScheme(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func canonicalURL(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.RawQuery == "" {
		u.Path = "/"
	}

	out := u.String()
	if u.ForceQuery && u.RawQuery == "" {
		out = strings.TrimSuffix(out, "?")
	}
	// A whole trailing run goes so that a second pass is a no-op.
	return strings.TrimRight(out, "/"), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errInvalidHost
	}
	if u.Opaque != "" {
		return nil, errInvalidHost
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	return u, nil
}

func canonicalHost(host string) (string, error) {
	if host == "" || strings.ContainsAny(host, forbiddenHostChars) {
		return "", errInvalidHost
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(host), nil
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", err
	}
	ascii = strings.ToLower(ascii)
	if ascii == "" || strings.HasPrefix(ascii, ".") || strings.Contains(ascii, "..") {
		return "", errInvalidHost
	}
	return ascii, nil
}
