package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// resolveValue resolves an optional string-or-reference field
func resolveValue(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return parsed.Value(), nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		Kind             ProviderKind    `json:"kind"`
		ClientID         json.RawMessage `json:"clientId"`
		RedirectURI      json.RawMessage `json:"redirectUri"`
		Scopes           []string        `json:"scopes,omitempty"`
		DiscoveryURL     json.RawMessage `json:"discoveryUrl,omitempty"`
		AuthorizationURL json.RawMessage `json:"authorizationUrl,omitempty"`
		ForcePrompt      string          `json:"forcePrompt,omitempty"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Kind = raw.Kind
	p.Scopes = raw.Scopes
	p.ForcePrompt = raw.ForcePrompt

	var err error
	if p.ClientID, err = resolveValue(raw.ClientID, "clientId"); err != nil {
		return err
	}
	if p.RedirectURI, err = resolveValue(raw.RedirectURI, "redirectUri"); err != nil {
		return err
	}
	if p.DiscoveryURL, err = resolveValue(raw.DiscoveryURL, "discoveryUrl"); err != nil {
		return err
	}
	if p.AuthorizationURL, err = resolveValue(raw.AuthorizationURL, "authorizationUrl"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for BackendConfig
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type rawBackend struct {
		BaseURL      json.RawMessage `json:"baseUrl"`
		DeviceHeader string          `json:"deviceHeader,omitempty"`
		Timeout      string          `json:"timeout,omitempty"`
	}

	var raw rawBackend
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.DeviceHeader = raw.DeviceHeader

	var err error
	if b.BaseURL, err = resolveValue(raw.BaseURL, "baseUrl"); err != nil {
		return err
	}
	if b.Timeout, err = parseDuration(raw.Timeout, "timeout"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                StorageKind     `json:"kind"`
		Path                json.RawMessage `json:"path,omitempty"`
		RedisAddr           json.RawMessage `json:"redisAddr,omitempty"`
		RedisPassword       json.RawMessage `json:"redisPassword,omitempty"`
		RedisDB             int             `json:"redisDb,omitempty"`
		Prefix              string          `json:"prefix,omitempty"`
		GCPProject          json.RawMessage `json:"gcpProject,omitempty"`
		FirestoreDatabase   string          `json:"firestoreDatabase,omitempty"`
		FirestoreCollection string          `json:"firestoreCollection,omitempty"`
		CleanupInterval     string          `json:"cleanupInterval,omitempty"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.RedisDB = raw.RedisDB
	s.Prefix = raw.Prefix
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection

	var err error
	if s.Path, err = resolveValue(raw.Path, "path"); err != nil {
		return err
	}
	if s.RedisAddr, err = resolveValue(raw.RedisAddr, "redisAddr"); err != nil {
		return err
	}
	password, err := resolveValue(raw.RedisPassword, "redisPassword")
	if err != nil {
		return err
	}
	s.RedisPassword = Secret(password)
	if s.GCPProject, err = resolveValue(raw.GCPProject, "gcpProject"); err != nil {
		return err
	}
	if s.CleanupInterval, err = parseDuration(raw.CleanupInterval, "cleanupInterval"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for LoginConfig
func (l *LoginConfig) UnmarshalJSON(data []byte) error {
	type rawLogin struct {
		PollInterval   string   `json:"pollInterval,omitempty"`
		PollTimeout    string   `json:"pollTimeout,omitempty"`
		PollGrace      string   `json:"pollGrace,omitempty"`
		RestartDelay   string   `json:"restartDelay,omitempty"`
		AttemptTTL     string   `json:"attemptTtl,omitempty"`
		FullNavigation bool     `json:"fullNavigation,omitempty"`
		AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	}

	var raw rawLogin
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.FullNavigation = raw.FullNavigation
	l.AllowedOrigins = raw.AllowedOrigins

	durations := []struct {
		dst   *time.Duration
		value string
		field string
	}{
		{&l.PollInterval, raw.PollInterval, "pollInterval"},
		{&l.PollTimeout, raw.PollTimeout, "pollTimeout"},
		{&l.PollGrace, raw.PollGrace, "pollGrace"},
		{&l.RestartDelay, raw.RestartDelay, "restartDelay"},
		{&l.AttemptTTL, raw.AttemptTTL, "attemptTtl"},
	}
	for _, d := range durations {
		v, err := parseDuration(d.value, d.field)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	return nil
}
