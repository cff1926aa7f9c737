package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ConfigVersionPrefix is the accepted config "version" prefix.
const ConfigVersionPrefix = "v0.1"

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// ProviderKind selects the identity provider preset
type ProviderKind string

const (
	ProviderLinkedIn ProviderKind = "linkedin"
	ProviderOAuth2   ProviderKind = "oauth2"
)

// StorageKind selects the per-origin key-value store backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageSQLite    StorageKind = "sqlite"
	StorageRedis     StorageKind = "redis"
	StorageFirestore StorageKind = "firestore"
)

// Config is the root login-front configuration.
//
// String values that vary per environment may be given as
// {"$env": "VAR_NAME"} references, resolved at load time.
type Config struct {
	Version  string         `json:"version"`
	Provider ProviderConfig `json:"provider"`
	Backend  BackendConfig  `json:"backend"`
	Storage  StorageConfig  `json:"storage"`
	Login    LoginConfig    `json:"login"`
}

// ProviderConfig describes the OAuth2 identity provider and this client's
// registration with it.
type ProviderConfig struct {
	Kind        ProviderKind `json:"kind"`
	ClientID    string       `json:"clientId"`
	RedirectURI string       `json:"redirectUri"`
	Scopes      []string     `json:"scopes,omitempty"`

	// oauth2 kind only: either DiscoveryURL or AuthorizationURL.
	DiscoveryURL     string `json:"discoveryUrl,omitempty"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`

	// ForcePrompt is the prompt value sent on forced re-consent.
	ForcePrompt string `json:"forcePrompt,omitempty"`
}

// BackendConfig points at the application backend that redeems codes.
type BackendConfig struct {
	BaseURL      string        `json:"baseUrl"`
	DeviceHeader string        `json:"deviceHeader,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
}

// StorageConfig selects and configures the durable store.
type StorageConfig struct {
	Kind StorageKind `json:"kind"`

	// sqlite
	Path string `json:"path,omitempty"`

	// redis
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword Secret `json:"-"`
	RedisDB       int    `json:"redisDb,omitempty"`
	Prefix        string `json:"prefix,omitempty"`

	// firestore
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`

	CleanupInterval time.Duration `json:"cleanupInterval,omitempty"`
}

// LoginConfig tunes the login state machine.
type LoginConfig struct {
	PollInterval time.Duration `json:"pollInterval,omitempty"`
	PollTimeout  time.Duration `json:"pollTimeout,omitempty"`
	PollGrace    time.Duration `json:"pollGrace,omitempty"`
	RestartDelay time.Duration `json:"restartDelay,omitempty"`
	AttemptTTL   time.Duration `json:"attemptTtl,omitempty"`

	// FullNavigation forces the full-page flow even on large screens.
	FullNavigation bool `json:"fullNavigation,omitempty"`

	// AllowedOrigins extends the same-origin policy for cross-window
	// messages. Empty means same origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// Defaults used when the config leaves a field empty.
const (
	DefaultPollInterval    = 400 * time.Millisecond
	DefaultPollTimeout     = 5 * time.Minute
	DefaultPollGrace       = 150 * time.Millisecond
	DefaultRestartDelay    = 100 * time.Millisecond
	DefaultAttemptTTL      = 10 * time.Minute
	DefaultBackendTimeout  = 15 * time.Second
	DefaultCleanupInterval = time.Minute
	DefaultForcePrompt     = "login"
	DefaultDeviceHeader    = "x_client_id"
)

// RawConfigValue holds a resolved config value
type RawConfigValue struct {
	value string
	env   string
}

// ParseConfigValue parses a plain string or an {"$env": "VAR"} reference
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value, env: envVar}, nil
}

// Value returns the resolved string
func (r *RawConfigValue) Value() string {
	return r.value
}

// FromEnv reports whether the value came from an environment reference
func (r *RawConfigValue) FromEnv() bool {
	return r.env != ""
}
