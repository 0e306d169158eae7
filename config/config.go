// Package config loads the governed context store's startup configuration:
// a JSON document (storage backend, listen address, TLS paths, policy/
// retention document paths) layered with environment-variable overrides.
// The env-override mechanism (EnvConfig/buildKey) is grounded on the
// teacher's own config package; the document shape is new, grounded on
// original_source/config.rs's option list, renamed to this project's
// CTXSTORE_ env prefix.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvConfig loads values from prefixed environment variables, the same
// buildKey convention the teacher uses throughout its service config
// packages.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a loader that reads "<prefix>_<KEY>" variables.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString retrieves a string value from the environment, or defaultValue
// if unset.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetBool retrieves a boolean value from the environment, or defaultValue
// if unset or unparseable.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// MustGetString retrieves a required string value from the environment or
// panics, matching the teacher's fail-loud-at-startup idiom.
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	v := os.Getenv(fullKey)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return v
}

// StorageConfig selects and configures the ContextStore backend.
type StorageConfig struct {
	Backend     string `json:"backend"`     // "memory" or "file"
	FileDataDir string `json:"fileDataDir"` // root directory for the file-backed variant
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr"`
}

// TLSConfig optionally configures HTTPS; both fields empty means plain HTTP.
type TLSConfig struct {
	CertPath string `json:"certPath"`
	KeyPath  string `json:"keyPath"`
}

// AuthConfig configures the JWT verifier boundary.
type AuthConfig struct {
	Disabled bool   `json:"disabled"`
	Secret   string `json:"secret"`
}

// Config is the full startup configuration document.
type Config struct {
	Storage       StorageConfig `json:"storage"`
	Server        ServerConfig  `json:"server"`
	TLS           TLSConfig     `json:"tls"`
	Auth          AuthConfig    `json:"auth"`
	PoliciesPath  string        `json:"policiesPath"`
	RetentionPath string        `json:"retentionPath"`
}

// Default returns the configuration used when no document is found: an
// in-memory store listening on :8080 with auth disabled for local dev.
func Default() Config {
	return Config{
		Storage: StorageConfig{Backend: "memory"},
		Server:  ServerConfig{ListenAddr: ":8080"},
		Auth:    AuthConfig{Disabled: true},
	}
}

// Load reads the JSON config document at path. A missing file yields
// Default() rather than an error, matching the teacher's load-or-default
// posture for optional startup documents; a malformed file is reported.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides layers CTXSTORE_-prefixed environment variables over
// cfg, generalizing the teacher's buildKey convention to this document's
// fields: CTXSTORE_STORAGE_BACKEND, CTXSTORE_STORAGE_FILE_DATA_DIR,
// CTXSTORE_SERVER_LISTEN_ADDR, CTXSTORE_TLS_CERT_PATH,
// CTXSTORE_TLS_KEY_PATH, CTXSTORE_AUTH_DISABLED, CTXSTORE_AUTH_SECRET.
func ApplyEnvOverrides(cfg Config, prefix string) Config {
	env := NewEnvConfig(prefix)
	cfg.Storage.Backend = env.GetString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.FileDataDir = env.GetString("STORAGE_FILE_DATA_DIR", cfg.Storage.FileDataDir)
	cfg.Server.ListenAddr = env.GetString("SERVER_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.TLS.CertPath = env.GetString("TLS_CERT_PATH", cfg.TLS.CertPath)
	cfg.TLS.KeyPath = env.GetString("TLS_KEY_PATH", cfg.TLS.KeyPath)
	cfg.Auth.Disabled = env.GetBool("AUTH_DISABLED", cfg.Auth.Disabled)
	cfg.Auth.Secret = env.GetString("AUTH_SECRET", cfg.Auth.Secret)
	cfg.PoliciesPath = env.GetString("POLICIES_PATH", cfg.PoliciesPath)
	cfg.RetentionPath = env.GetString("RETENTION_PATH", cfg.RetentionPath)
	return cfg
}

// RequestTimeout is a 30-second read/write timeout value for the HTTP
// server, not part of the JSON document. cmd/server does not apply it to
// the server it starts.
const RequestTimeout = 30 * time.Second
