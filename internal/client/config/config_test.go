package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, c.ServerEndpointAddr, "http://localhost:8080")
	assert.Equal(t, c.UnlockTimeout, 30*time.Second)
}

func TestParseEnv(t *testing.T) {
	t.Run("overrides unlock timeout", func(t *testing.T) {
		t.Setenv(UnlockTimeoutEnv, "120")

		var c Config
		c.LoadDefaults()
		parseEnv(&c)

		assert.Equal(t, 120*time.Second, c.UnlockTimeout)
	})

	t.Run("ignores garbage", func(t *testing.T) {
		t.Setenv(UnlockTimeoutEnv, "soon")

		var c Config
		c.LoadDefaults()
		parseEnv(&c)

		assert.Equal(t, 30*time.Second, c.UnlockTimeout)
	})

	t.Run("ignores non-positive", func(t *testing.T) {
		t.Setenv(UnlockTimeoutEnv, "0")

		var c Config
		c.LoadDefaults()
		parseEnv(&c)

		assert.Equal(t, 30*time.Second, c.UnlockTimeout)
	})
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")
	assert.Equal(t, c.ServerEndpointAddr, "http://localhost:8080")
	assert.Equal(t, c.UnlockTimeout, 30*time.Second)
}
