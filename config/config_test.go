package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("REGDESK_LISTEN", "")
	t.Setenv("REGDESK_STORAGE", "")
	t.Setenv("REGDESK_DATA_DIR", "")
	t.Setenv("REGDESK_ACCESS_HEADER", "")

	cfg := FromEnv()
	require.NotNil(t, cfg)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "Cf-Access-Authenticated-User-Email", cfg.AccessHeader)
}

func TestFromEnvReadsEnvironment(t *testing.T) {
	t.Setenv("REGDESK_LISTEN", ":9090")
	t.Setenv("REGDESK_STORAGE", "bbolt")
	t.Setenv("REGDESK_DEVELOPER_EMAILS", "Dev@Conf.example.org, ,ops@conf.example.org")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "bbolt", cfg.Storage)
	assert.Equal(t, []string{"dev@conf.example.org", "ops@conf.example.org"}, cfg.DeveloperEmails)
}

func TestFlagValuesWinOverEnvironment(t *testing.T) {
	t.Setenv("REGDESK_LISTEN", ":9090")

	c := &Config{ListenAddr: ":7000"}
	c.FromEnv()
	assert.Equal(t, ":7000", c.ListenAddr)
}
