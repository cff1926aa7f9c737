package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	require.NoError(t, generateDefaultConfig(path, false))
	require.NoError(t, validateConfig(path))

	err := generateDefaultConfig(path, false)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, generateDefaultConfig(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"redirectUri"`)
}

func TestValidateConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "v9"}`), 0o600))

	assert.ErrorContains(t, validateConfig(path), "validation failed")
	assert.ErrorContains(t, validateConfig(filepath.Join(t.TempDir(), "missing.json")), "error during validation")
}

func TestStatus_NotLoggedIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "v0.1",
		"provider": {"kind": "linkedin", "clientId": "client-1", "redirectUri": "http://127.0.0.1:8765/callback"},
		"backend": {"baseUrl": "https://api.example.com"},
		"storage": {"kind": "memory"}
	}`), 0o600))

	rootCmd.SetArgs([]string{"status", "--config", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.NoError(t, rootCmd.Execute())
}

func TestAccountLabel(t *testing.T) {
	assert.Equal(t, "p-42", accountLabel("p-42"))
	assert.Equal(t, "unknown account", accountLabel(""))
}
