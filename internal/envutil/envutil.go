package envutil

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDev checks if we're running in development mode, where plain-http
// redirect URIs and backend URLs are tolerated.
func IsDev() bool {
	env := strings.ToLower(os.Getenv("LOGIN_FRONT_ENV"))
	return env == "development" || env == "dev"
}

// ConfigDir returns the directory holding the CLI's config and state files.
// LOGIN_FRONT_HOME wins over the user config dir.
func ConfigDir() (string, error) {
	if dir := os.Getenv("LOGIN_FRONT_HOME"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "login-front"), nil
}
