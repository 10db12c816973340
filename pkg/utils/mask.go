package utils

import (
	"net/url"
	"regexp"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password portion of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskSecret keeps the last four characters of a credential for correlation.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// MaskQuery returns u as a string with the named query parameters masked.
// FRED takes its api_key as a query parameter, so request URLs must never be
// logged unmasked.
func MaskQuery(u *url.URL, params ...string) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	masked := false
	for _, p := range params {
		if v := q.Get(p); v != "" {
			q.Set(p, MaskSecret(v))
			masked = true
		}
	}
	if !masked {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
