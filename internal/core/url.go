// AngelaMos | 2026
// url.go

package core

import (
	"net/url"
	"strings"
)

// NormalizeURL lowercases scheme and host and drops the fragment and any
// trailing slash, so equivalent spellings of a site compare equal.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String()
}
