package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes is ValidateFile for an in-memory document
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", ConfigVersionPrefix)
	} else if !strings.HasPrefix(version, ConfigVersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, ConfigVersionPrefix, ConfigVersionPrefix)
	}

	validateProviderStructure(rawConfig, result)
	validateBackendStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)
	validateLoginStructure(rawConfig, result)

	return result
}

func validateProviderStructure(rawConfig map[string]any, result *ValidationResult) {
	provider, ok := rawConfig["provider"].(map[string]any)
	if !ok {
		result.addError("provider", "provider field is required and must be an object")
		return
	}

	for _, field := range []string{"clientId", "redirectUri"} {
		if _, ok := provider[field]; !ok {
			result.addError("provider."+field, "%s is required", field)
		}
	}

	kind, _ := provider["kind"].(string)
	switch ProviderKind(kind) {
	case "", ProviderLinkedIn:
	case ProviderOAuth2:
		_, hasDiscovery := provider["discoveryUrl"]
		_, hasAuthURL := provider["authorizationUrl"]
		if !hasDiscovery && !hasAuthURL {
			result.addError("provider", "oauth2 provider needs discoveryUrl or authorizationUrl")
		}
	default:
		result.addError("provider.kind", "unknown provider kind '%s'. Valid kinds: linkedin, oauth2", kind)
	}

	if _, ok := provider["clientSecret"]; ok {
		result.addWarning("provider.clientSecret", "clientSecret is ignored: the login front is a public client and relies on PKCE")
	}
}

func validateBackendStructure(rawConfig map[string]any, result *ValidationResult) {
	backend, ok := rawConfig["backend"].(map[string]any)
	if !ok {
		result.addError("backend", "backend field is required and must be an object")
		return
	}
	if _, ok := backend["baseUrl"]; !ok {
		result.addError("backend.baseUrl", "baseUrl is required. Example: \"https://api.example.com\"")
	}
	checkDuration(backend, "timeout", "backend", result)
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		return
	}

	kind, _ := storage["kind"].(string)
	switch StorageKind(kind) {
	case "", StorageMemory, StorageSQLite:
	case StorageRedis:
		if _, ok := storage["redisAddr"]; !ok {
			result.addError("storage.redisAddr", "redisAddr is required for redis storage")
		}
	case StorageFirestore:
		if _, ok := storage["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required when using firestore storage")
		}
	default:
		result.addError("storage.kind", "unknown storage kind '%s'. Valid kinds: memory, sqlite, redis, firestore", kind)
	}

	if StorageKind(kind) == StorageMemory {
		result.addWarning("storage.kind", "memory storage does not survive restarts; the session token is lost on exit")
	}

	if password, ok := storage["redisPassword"]; ok {
		if err := validateEnvVarReference(password, "redisPassword", "storage.redisPassword"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}

	checkDuration(storage, "cleanupInterval", "storage", result)
}

func validateLoginStructure(rawConfig map[string]any, result *ValidationResult) {
	login, ok := rawConfig["login"].(map[string]any)
	if !ok {
		return
	}

	durations := map[string]time.Duration{}
	for _, field := range []string{"pollInterval", "pollTimeout", "pollGrace", "restartDelay", "attemptTtl"} {
		if d, ok := checkDuration(login, field, "login", result); ok {
			durations[field] = d
		}
	}

	interval, hasInterval := durations["pollInterval"]
	timeout, hasTimeout := durations["pollTimeout"]
	if hasInterval && hasTimeout && timeout <= interval {
		result.addError("login.pollTimeout", "pollTimeout (%s) must be longer than pollInterval (%s)", timeout, interval)
	}

	if ttl, ok := durations["attemptTtl"]; ok && hasTimeout && ttl < timeout {
		result.addWarning("login.attemptTtl",
			"attemptTtl (%s) is shorter than pollTimeout (%s). A slow popup login will be rejected as expired.", ttl, timeout)
	}
}

// checkDuration validates an optional duration string field
func checkDuration(section map[string]any, field, prefix string, result *ValidationResult) (time.Duration, bool) {
	value, ok := section[field]
	if !ok {
		return 0, false
	}
	path := prefix + "." + field
	s, ok := value.(string)
	if !ok {
		result.addError(path, "%s must be a duration string like \"400ms\" or \"5m\"", field)
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		result.addError(path, "invalid duration '%s': %v", s, err)
		return 0, false
	}
	if d < 0 {
		result.addError(path, "%s cannot be negative", field)
		return 0, false
	}
	return d, true
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if match := bashStyleRegex.FindString(v); match != "" {
			varName := strings.Trim(match, "${}")
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion and ensures security", v, varName),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path,
				"found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing",
				match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
