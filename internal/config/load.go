package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgellow/login-front/internal/envutil"
	"github.com/dgellow/login-front/internal/log"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a config document
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, ConfigVersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates secrets before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		return nil
	}
	value, exists := storage["redisPassword"]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("redisPassword must use environment variable reference for security")
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("redisPassword must use {\"$env\": \"VAR_NAME\"} format")
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	p := &config.Provider
	if p.Kind == "" {
		p.Kind = ProviderLinkedIn
	}
	if p.ForcePrompt == "" {
		p.ForcePrompt = DefaultForcePrompt
	}

	b := &config.Backend
	if b.DeviceHeader == "" {
		b.DeviceHeader = DefaultDeviceHeader
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBackendTimeout
	}

	s := &config.Storage
	if s.Kind == "" {
		s.Kind = StorageSQLite
	}
	if s.Kind == StorageSQLite && s.Path == "" {
		s.Path = DefaultStatePath()
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = DefaultCleanupInterval
	}

	l := &config.Login
	if l.PollInterval == 0 {
		l.PollInterval = DefaultPollInterval
	}
	if l.PollTimeout == 0 {
		l.PollTimeout = DefaultPollTimeout
	}
	if l.PollGrace == 0 {
		l.PollGrace = DefaultPollGrace
	}
	if l.RestartDelay == 0 {
		l.RestartDelay = DefaultRestartDelay
	}
	if l.AttemptTTL == 0 {
		l.AttemptTTL = DefaultAttemptTTL
	}
}

// DefaultStatePath is where the CLI keeps its SQLite state
func DefaultStatePath() string {
	dir, err := envutil.ConfigDir()
	if err != nil {
		return "login-front.db"
	}
	return filepath.Join(dir, "state.db")
}

// DefaultConfigPath is where the CLI looks for its config file
func DefaultConfigPath() string {
	dir, err := envutil.ConfigDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(dir, "config.json")
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if err := validateProvider(&config.Provider); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := validateBackend(&config.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := validateStorage(&config.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	l := config.Login
	if l.PollTimeout <= l.PollInterval {
		return fmt.Errorf("login.pollTimeout must be longer than login.pollInterval")
	}
	if l.PollGrace >= l.PollTimeout {
		log.LogWarn("login.pollGrace is not shorter than login.pollTimeout")
	}
	for _, origin := range l.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			return fmt.Errorf("login.allowedOrigins: %q is not an origin (scheme://host[:port])", origin)
		}
	}
	return nil
}

func validateProvider(p *ProviderConfig) error {
	if p.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("redirectUri is required")
	}
	u, err := url.Parse(p.RedirectURI)
	if err != nil || u.Host == "" {
		return fmt.Errorf("redirectUri must be an absolute URL")
	}
	if u.Scheme != "https" && !isLoopback(u.Hostname()) && !envutil.IsDev() {
		return fmt.Errorf("redirectUri must use https outside development")
	}

	switch p.Kind {
	case ProviderLinkedIn:
	case ProviderOAuth2:
		if p.DiscoveryURL == "" && p.AuthorizationURL == "" {
			return fmt.Errorf("oauth2 provider needs discoveryUrl or authorizationUrl")
		}
		if p.DiscoveryURL != "" && p.AuthorizationURL != "" {
			return fmt.Errorf("discoveryUrl and authorizationUrl are mutually exclusive")
		}
	default:
		return fmt.Errorf("unknown kind %q (linkedin, oauth2)", p.Kind)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func validateBackend(b *BackendConfig) error {
	if b.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("baseUrl must be an absolute URL")
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Kind {
	case StorageMemory:
	case StorageSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required for sqlite storage")
		}
	case StorageRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("redisAddr is required for redis storage")
		}
	case StorageFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown kind %q (memory, sqlite, redis, firestore)", s.Kind)
	}
	return nil
}
