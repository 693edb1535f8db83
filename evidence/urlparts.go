package evidence

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseURL splits raw into scheme, authority, path and port. The returned
// host is the full authority (userinfo and port included) the way it was
// written. Malformed input yields empty values and a non-nil error; callers
// that only want the parts can ignore the error.
func ParseURL(raw string) (string, URLParts, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", URLParts{}, fmt.Errorf("parse url: %w", err)
	}

	host := u.Host
	if u.User != nil {
		host = u.User.String() + "@" + host
	}

	return host, URLParts{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.EscapedPath(),
		Port:   u.Port(),
	}, nil
}

// Hostname strips userinfo and port from an authority string.
func Hostname(authority string) string {
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		authority = authority[i+1:]
	}
	u := url.URL{Host: authority}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}
