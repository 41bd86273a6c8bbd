package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultEndpoint             = "0.0.0.0:6379"
	DefaultTransport            = "tcp"
	DefaultMaxClients           = 100
	DefaultMaxDatabases         = 16
	DefaultNumShards            = 1024
	DefaultAutosaveInterval     = 30 * time.Second
	DefaultStopGraceMillisecond = 1000
	DefaultLogLevel             = "info"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// DatabaseConfig names one database and the file it is persisted to
type DatabaseConfig struct {
	Name string
	Path string
}

// ServerConfig holds all configuration parameters of an xDB server.
type ServerConfig struct {
	// Listening endpoint (host:port for tcp, socket path for unix)
	Endpoint  string
	Transport string

	// Databases in index order
	Databases    []DatabaseConfig
	MaxDatabases int
	NumShards    int

	// Connection handling
	MaxClients    int
	TimeoutSecond int64

	// TCP socket options
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // -1 keeps the os default

	// Persistence
	AutosaveInterval     time.Duration
	StopGraceMillisecond int64

	// Observability
	LogLevel        string
	MetricsEndpoint string // empty disables the metrics endpoint
}

// DefaultServerConfig returns a configuration with all defaults and no databases
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:             DefaultEndpoint,
		Transport:            DefaultTransport,
		MaxDatabases:         DefaultMaxDatabases,
		NumShards:            DefaultNumShards,
		MaxClients:           DefaultMaxClients,
		TCPNoDelay:           true,
		TCPLingerSec:         -1,
		AutosaveInterval:     DefaultAutosaveInterval,
		StopGraceMillisecond: DefaultStopGraceMillisecond,
		LogLevel:             DefaultLogLevel,
	}
}

// StopGrace returns the time the server waits for open connections on stop
func (c *ServerConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMillisecond) * time.Millisecond
}

// Validate checks the configuration for values the server can not run with
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint must not be empty"))
	}
	if c.Transport != "tcp" && c.Transport != "unix" {
		errs = append(errs, fmt.Errorf("invalid transport %q: must be one of tcp, unix", c.Transport))
	}
	if c.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("max clients must be positive, got %d", c.MaxClients))
	}
	if c.MaxDatabases <= 0 {
		errs = append(errs, fmt.Errorf("max databases must be positive, got %d", c.MaxDatabases))
	}
	if c.NumShards <= 0 {
		errs = append(errs, fmt.Errorf("shard count must be positive, got %d", c.NumShards))
	}
	if c.AutosaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("autosave interval must be positive, got %s", c.AutosaveInterval))
	}
	if c.StopGraceMillisecond < 0 {
		errs = append(errs, fmt.Errorf("stop grace must not be negative, got %d", c.StopGraceMillisecond))
	}
	if c.TimeoutSecond < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %d", c.TimeoutSecond))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(c.Databases) == 0 {
		errs = append(errs, errors.New("at least one database is required"))
	}
	if c.MaxDatabases > 0 && len(c.Databases) > c.MaxDatabases {
		errs = append(errs, fmt.Errorf("%d databases configured, at most %d allowed", len(c.Databases), c.MaxDatabases))
	}
	seen := make(map[string]bool, len(c.Databases))
	for _, database := range c.Databases {
		if database.Name == "" {
			errs = append(errs, errors.New("database name must not be empty"))
			continue
		}
		if seen[database.Name] {
			errs = append(errs, fmt.Errorf("duplicate database name %q", database.Name))
		}
		seen[database.Name] = true
	}

	return errors.Join(errs...)
}

// ParseDatabases parses a database list of the form "name=path,name=path".
// A name without "=path" is persisted to "<name>.xdb".
func ParseDatabases(spec string) ([]DatabaseConfig, error) {
	var databases []DatabaseConfig
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, path, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if name == "" {
			return nil, fmt.Errorf("invalid database %q: missing name", part)
		}
		if !found {
			path = name + ".xdb"
		}
		databases = append(databases, DatabaseConfig{Name: name, Path: path})
	}
	return databases, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport)
	addField("Max Clients", strconv.Itoa(c.MaxClients))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.Transport == "tcp" {
		addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
		addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
		addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
	}

	addSection("Persistence")
	addField("Autosave Interval", c.AutosaveInterval.String())
	addField("Stop Grace", c.StopGrace().String())

	addSection("Databases")
	addField("Max Databases", strconv.Itoa(c.MaxDatabases))
	addField("Shards per Database", strconv.Itoa(c.NumShards))
	for i, database := range c.Databases {
		addField(strconv.Itoa(i), fmt.Sprintf("%s (%s)", database.Name, database.Path))
	}

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	metrics := c.MetricsEndpoint
	if metrics == "" {
		metrics = "disabled"
	}
	addField("Metrics Endpoint", metrics)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	Transport     string
	TimeoutSecond int
	RetryCount    int
}

// DefaultClientConfig returns the client configuration matching a default server
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:      "localhost:6379",
		Transport:     DefaultTransport,
		TimeoutSecond: 5,
		RetryCount:    2,
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	return sb.String()
}
