package session

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/openconf/regdesk/config"
)

// Cookie returns the Set-Cookie header value carrying a session token.
// The name and every attribute are fixed; the token value is
// url-encoded so tokens containing '+', '/' or '=' survive the round
// trip.
func Cookie(token string) string {
	attributes := []string{
		config.SessionCookieName + "=" + url.QueryEscape(token),
		"Path=/",
		"Max-Age=" + strconv.Itoa(int(config.SessionTTL.Seconds())),
		"HttpOnly",
		"SameSite=Lax",
		"Secure",
	}
	return strings.Join(attributes, "; ")
}

// ExpiredCookie returns a Set-Cookie header value that instructs the
// client to delete the session cookie immediately.
func ExpiredCookie() string {
	attributes := []string{
		config.SessionCookieName + "=",
		"Path=/",
		"Max-Age=0",
		"HttpOnly",
		"SameSite=Lax",
		"Secure",
	}
	return strings.Join(attributes, "; ")
}

// ParseCookies parses a raw Cookie request header into a name/value
// map. Pairs are split on ';', then on the first '='; values are
// url-decoded. Malformed pairs are skipped, not errors.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rawValue, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		cookies[strings.TrimSpace(name)] = value
	}
	return cookies
}
