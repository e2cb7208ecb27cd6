package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL builds a comparison key for a sitemap location.
// It lowercases scheme and host, drops default ports and the fragment, turns an empty path into "/"
// and trims one trailing slash from longer paths. The query string is kept because
// paginated sitemaps differ only by query.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}
	normalized.RawPath = ""
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseAndNormalize parses with url.ParseRequestURI (scheme or absolute path required) and normalizes
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// hasHTTPScheme reports whether s starts with http:// or https://, ignoring case
func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// NormalizeBaseDomain turns user input into a base domain: https:// is assumed when no
// http(s) scheme is given, and trailing slashes are removed.
// "example.com/" becomes "https://example.com"; "http://x.org" is kept as is.
func NormalizeBaseDomain(raw string) string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return ""
	}
	if !hasHTTPScheme(d) {
		d = "https://" + d
	}
	return strings.TrimRight(d, "/")
}

// IsDirectSitemapURL reports whether input already names a sitemap document:
// it mentions "sitemap" and ends in .xml or .xml.gz (case-insensitive).
func IsDirectSitemapURL(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(lower, "sitemap") {
		return false
	}
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// ResolveSitemapHref resolves an href found in a homepage <link> against the base domain.
// Absolute http(s) hrefs are returned unchanged; protocol-relative hrefs take the domain's scheme.
func ResolveSitemapHref(baseDomain, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case hasHTTPScheme(href):
		return href
	case strings.HasPrefix(href, "//"):
		scheme := "https:"
		if strings.HasPrefix(strings.ToLower(baseDomain), "http://") {
			scheme = "http:"
		}
		return scheme + href
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(baseDomain, "/") + href
	}
	return strings.TrimRight(baseDomain, "/") + "/" + href
}

// JoinURL appends path to a base domain with exactly one separating slash.
// A base without a scheme is normalized first.
func JoinURL(base, path string) string {
	return NormalizeBaseDomain(base) + "/" + strings.TrimLeft(path, "/")
}

// HostOf returns the lowercase host (with port) of rawURL, or "" when it cannot be parsed
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameBaseDomain reports whether two inputs normalize to the same base domain.
// Comparison ignores case in scheme and host.
func SameBaseDomain(a, b string) bool {
	na, nb := NormalizeBaseDomain(a), NormalizeBaseDomain(b)
	if na == "" || nb == "" {
		return false
	}
	ka, _, errA := ParseAndNormalize(na)
	kb, _, errB := ParseAndNormalize(nb)
	if errA != nil || errB != nil {
		return strings.EqualFold(na, nb)
	}
	return ka == kb
}
