// Package config provides configuration management for the Payload MCP server.
// It handles loading and parsing YAML configuration files, applies environment
// variable overrides, and provides structured access to application settings
// including the Payload API endpoint, authentication options, proxy behavior,
// and logging flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is used when no Payload API endpoint is configured.
	DefaultBaseURL = "http://localhost:3000/api"

	// DefaultAuthPort is the localhost port for the interactive login page.
	DefaultAuthPort = 8765

	// DefaultCollection is the auth-enabled collection used for login.
	DefaultCollection = "users"

	// DefaultTimeout is the outbound request timeout.
	DefaultTimeout = 30 * time.Second
)

// Config represents the application's configuration, loaded from a YAML file
// with PAYLOAD_MCP_* environment variable overrides.
type Config struct {
	// BaseURL is the base URL of the Payload CMS REST API.
	BaseURL string `yaml:"base-url"`

	// AuthToken is an optional pre-seeded JWT for authenticating API calls.
	AuthToken string `yaml:"auth-token"`

	// Collection is the auth-enabled collection slug used for login requests.
	Collection string `yaml:"collection"`

	// TimeoutSeconds is the outbound request timeout in seconds.
	TimeoutSeconds int `yaml:"timeout"`

	// VerifySSL controls TLS certificate verification for outbound requests.
	VerifySSL bool `yaml:"verify-ssl"`

	// BypassLocalhostProxy skips any configured proxy for localhost targets.
	BypassLocalhostProxy bool `yaml:"bypass-localhost-proxy"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// AuthPort is the localhost port the interactive login server binds to.
	AuthPort int `yaml:"auth-port"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile routes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// RequestLog enables detailed request logging for outbound API calls.
	RequestLog bool `yaml:"request-log"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:              DefaultBaseURL,
		Collection:           DefaultCollection,
		TimeoutSeconds:       int(DefaultTimeout / time.Second),
		VerifySSL:            false,
		BypassLocalhostProxy: true,
		AuthPort:             DefaultAuthPort,
	}
}

// LoadConfig reads a YAML configuration file from the given path, unmarshals
// it into a Config struct, applies environment variable overrides, and
// returns it. A missing file is not an error; the defaults are used so the
// server can run from environment variables alone.
func LoadConfig(configFile string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()

	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
	if config.AuthPort <= 0 {
		config.AuthPort = DefaultAuthPort
	}
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}

	return config, nil
}

// Timeout returns the outbound request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// applyEnvOverrides overlays PAYLOAD_MCP_* environment variables on top of
// the file-sourced values.
func (c *Config) applyEnvOverrides() {
	setString(&c.BaseURL, "PAYLOAD_MCP_BASE_URL")
	setString(&c.AuthToken, "PAYLOAD_MCP_AUTH_TOKEN")
	setString(&c.Collection, "PAYLOAD_MCP_COLLECTION")
	setString(&c.ProxyURL, "PAYLOAD_MCP_PROXY_URL")
	setInt(&c.TimeoutSeconds, "PAYLOAD_MCP_TIMEOUT")
	setInt(&c.AuthPort, "PAYLOAD_MCP_AUTH_PORT")
	setBool(&c.VerifySSL, "PAYLOAD_MCP_VERIFY_SSL")
	setBool(&c.BypassLocalhostProxy, "PAYLOAD_MCP_BYPASS_LOCALHOST_PROXY")
	setBool(&c.Debug, "PAYLOAD_MCP_DEBUG")
	setBool(&c.LoggingToFile, "PAYLOAD_MCP_LOGGING_TO_FILE")
	setBool(&c.RequestLog, "PAYLOAD_MCP_REQUEST_LOG")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
