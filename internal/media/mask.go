package media

import (
	"net/url"
	"strings"
)

// MaskURL keeps scheme, host and the last path segment of a media link so
// logs can tell clips apart without leaking signed query strings.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	name := u.Path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	masked := u.Scheme + "://" + u.Host + "/.../" + name
	if u.RawQuery != "" {
		masked += "?***"
	}
	return masked
}
