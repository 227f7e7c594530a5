package ledger

import (
	"net/url"
	"strings"
)

const canonicalHost = "www.linkedin.com"

// Normalize returns the canonical form of a target identifier.
//
// URLs lose their query string, fragment and trailing slashes and get a
// lower-cased host, so the tracking parameters the site appends to every link
// never produce a second key for the same person. LinkedIn URLs are also
// moved to https on www.linkedin.com. Anything that is not an http(s) URL is
// treated as a display name and only has its whitespace collapsed.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyTarget
	}

	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		u.Host = strings.ToLower(u.Host)
		if u.Host == "linkedin.com" || u.Host == canonicalHost {
			u.Scheme = "https"
			u.Host = canonicalHost
		}
		u.RawQuery = ""
		u.ForceQuery = false
		u.Fragment = ""
		u.RawFragment = ""
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
		return u.String(), nil
	}

	return strings.Join(strings.Fields(s), " "), nil
}

// IsProfileURL reports whether a normalized target id points at a member profile.
func IsProfileURL(id string) bool {
	u, err := url.Parse(id)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.HasPrefix(u.Path, "/in/") && len(u.Path) > len("/in/")
}
