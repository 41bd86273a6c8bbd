package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() ServerConfig {
	config := DefaultServerConfig()
	config.Databases = []DatabaseConfig{{Name: "main", Path: "main.xdb"}}
	return config
}

func TestDefaultServerConfig(t *testing.T) {
	config := DefaultServerConfig()
	assert.Equal(t, "0.0.0.0:6379", config.Endpoint)
	assert.Equal(t, 100, config.MaxClients)
	assert.Equal(t, 16, config.MaxDatabases)
	assert.Equal(t, 1024, config.NumShards)
	assert.Equal(t, 30*time.Second, config.AutosaveInterval)
	assert.Equal(t, time.Second, config.StopGrace())

	// no databases configured
	assert.Error(t, config.Validate())
	valid := validConfig()
	assert.NoError(t, valid.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *ServerConfig)
	}{
		{"no clients", func(c *ServerConfig) { c.MaxClients = 0 }},
		{"no databases allowed", func(c *ServerConfig) { c.MaxDatabases = 0 }},
		{"no shards", func(c *ServerConfig) { c.NumShards = -1 }},
		{"no autosave", func(c *ServerConfig) { c.AutosaveInterval = 0 }},
		{"bad transport", func(c *ServerConfig) { c.Transport = "http" }},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "loud" }},
		{"negative timeout", func(c *ServerConfig) { c.TimeoutSecond = -1 }},
		{"empty endpoint", func(c *ServerConfig) { c.Endpoint = "" }},
		{"duplicate name", func(c *ServerConfig) {
			c.Databases = append(c.Databases, DatabaseConfig{Name: "main", Path: "other.xdb"})
		}},
		{"too many databases", func(c *ServerConfig) {
			c.MaxDatabases = 1
			c.Databases = append(c.Databases, DatabaseConfig{Name: "cache", Path: "cache.xdb"})
		}},
		{"empty name", func(c *ServerConfig) {
			c.Databases = append(c.Databases, DatabaseConfig{Path: "x.xdb"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestParseDatabases(t *testing.T) {
	databases, err := ParseDatabases("main=./data/main.xdb, cache , ,logs=/var/log.xdb")
	require.NoError(t, err)
	assert.Equal(t, []DatabaseConfig{
		{Name: "main", Path: "./data/main.xdb"},
		{Name: "cache", Path: "cache.xdb"},
		{Name: "logs", Path: "/var/log.xdb"},
	}, databases)

	databases, err = ParseDatabases("")
	require.NoError(t, err)
	assert.Empty(t, databases)

	_, err = ParseDatabases("=path.xdb")
	assert.Error(t, err)
}

func TestConfigString(t *testing.T) {
	config := validConfig()
	out := config.String()
	assert.Contains(t, out, "0.0.0.0:6379")
	assert.Contains(t, out, "main (main.xdb)")
	assert.Contains(t, out, "disabled")

	client := DefaultClientConfig()
	assert.Contains(t, client.String(), "localhost:6379")
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		_, err := ParseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
