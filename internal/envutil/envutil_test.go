package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDev(t *testing.T) {
	t.Setenv("LOGIN_FRONT_ENV", "Development")
	assert.True(t, IsDev())

	t.Setenv("LOGIN_FRONT_ENV", "production")
	assert.False(t, IsDev())
}

func TestConfigDirOverride(t *testing.T) {
	t.Setenv("LOGIN_FRONT_HOME", "/tmp/lf-home")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lf-home", dir)
}
