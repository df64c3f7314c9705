// Package config centralizes the platform's runtime settings and the
// authentication constants that every component shares. The constants
// here are the single source of truth; handlers and stores must not
// carry their own copies.
package config

import (
	"os"
	"strings"
	"time"
)

const (
	// SessionCookieName is the fixed cookie carrying the session token.
	SessionCookieName = "session_token"

	// SessionTTL is the fixed session lifetime. Expiry is set once at
	// creation and never extended.
	SessionTTL = 7 * 24 * time.Hour

	// PasswordIterations is the canonical PBKDF2 iteration count for
	// newly created credentials.
	PasswordIterations = 120_000

	// PasswordKeyLength is the derived key length in bytes.
	PasswordKeyLength = 32

	// PasswordSaltLength is the random salt length in bytes.
	PasswordSaltLength = 16
)

// Config holds everything the server needs at startup. Values come from
// cobra flags with environment fallbacks; see cmd/regdesk.
type Config struct {
	ListenAddr string

	// Storage selects the repository backend: "postgres", "bbolt" or
	// "memory". DatabaseDSN applies to postgres, DataDir to bbolt.
	Storage     string
	DatabaseDSN string
	DataDir     string

	// Object store (S3-compatible). Empty endpoint means AWS proper.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Transactional mail relay. Empty MailFrom disables sending.
	MailEndpoint string
	MailFrom     string
	MailFromName string
	MailReplyTo  string
	SchoolEmail  string

	// DeveloperEmails is the allowlist honored for the access-proxy
	// identity header on /api/dev routes.
	DeveloperEmails []string
	AccessHeader    string
}

// FromEnv applies environment fallbacks for any field left at its zero
// value. Flags win over the environment.
func (c *Config) FromEnv() {
	env := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	env(&c.ListenAddr, "REGDESK_LISTEN")
	env(&c.Storage, "REGDESK_STORAGE")
	env(&c.DatabaseDSN, "REGDESK_DATABASE_DSN")
	env(&c.DataDir, "REGDESK_DATA_DIR")
	env(&c.S3Bucket, "REGDESK_S3_BUCKET")
	env(&c.S3Region, "REGDESK_S3_REGION")
	env(&c.S3Endpoint, "REGDESK_S3_ENDPOINT")
	env(&c.S3AccessKey, "REGDESK_S3_ACCESS_KEY")
	env(&c.S3SecretKey, "REGDESK_S3_SECRET_KEY")
	env(&c.MailEndpoint, "REGDESK_MAIL_ENDPOINT")
	env(&c.MailFrom, "REGDESK_MAIL_FROM")
	env(&c.MailFromName, "REGDESK_MAIL_FROM_NAME")
	env(&c.MailReplyTo, "REGDESK_MAIL_REPLY_TO")
	env(&c.SchoolEmail, "REGDESK_SCHOOL_EMAIL")
	env(&c.AccessHeader, "REGDESK_ACCESS_HEADER")

	if len(c.DeveloperEmails) == 0 {
		c.DeveloperEmails = SplitEmails(os.Getenv("REGDESK_DEVELOPER_EMAILS"))
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Storage == "" {
		c.Storage = "memory"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.AccessHeader == "" {
		c.AccessHeader = "Cf-Access-Authenticated-User-Email"
	}
}

// FromEnv builds a Config entirely from the environment, with the
// usual defaults applied. Commands that layer flags on top construct
// the struct first and call the method instead.
func FromEnv() *Config {
	c := &Config{}
	c.FromEnv()
	return c
}

// SplitEmails parses a comma-separated allowlist, lowercasing and
// dropping empty entries.
func SplitEmails(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
