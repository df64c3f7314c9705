package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconf/regdesk/config"
)

func TestCookieAttributes(t *testing.T) {
	c := Cookie("abc123")
	assert.Equal(t, config.SessionCookieName+"=abc123; Path=/; Max-Age=604800; HttpOnly; SameSite=Lax; Secure", c)
}

func TestCookieRoundTrip(t *testing.T) {
	// Tokens with characters that need escaping must survive the trip.
	for _, token := range []string{
		"plain-token",
		"with+plus/and=equals",
		"sp ace;semi",
	} {
		got := ParseCookies(Cookie(token))
		assert.Equal(t, token, got[config.SessionCookieName], "token %q", token)
	}
}

func TestExpiredCookie(t *testing.T) {
	c := ExpiredCookie()
	assert.Contains(t, c, config.SessionCookieName+"=;")
	assert.Contains(t, c, "Max-Age=0")
	assert.Contains(t, c, "HttpOnly")
}

func TestParseCookies(t *testing.T) {
	got := ParseCookies("a=1; b=2;c=3 ; d=")
	require.Len(t, got, 4)
	assert.Equal(t, "1", got["a"])
	assert.Equal(t, "2", got["b"])
	assert.Equal(t, "3", got["c"])
	assert.Equal(t, "", got["d"])

	assert.Empty(t, ParseCookies(""))

	// Malformed pairs are skipped, valid ones kept.
	got = ParseCookies("garbage; ok=yes")
	assert.Equal(t, "yes", got["ok"])
	_, present := got["garbage"]
	assert.False(t, present)

	// A percent sequence that fails to unescape falls back to the raw value.
	got = ParseCookies("raw=%zz")
	assert.Equal(t, "%zz", got["raw"])
}
