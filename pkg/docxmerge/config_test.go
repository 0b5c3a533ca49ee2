package docxmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "info", config.LogLevel)
	assert.False(t, config.StrictMode)
	assert.Equal(t, 100, config.MaxBlockDepth)
	assert.Equal(t, 120, config.DefaultImageSize)
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("DOCXMERGE_LOG_LEVEL", "debug")
	t.Setenv("DOCXMERGE_STRICT_MODE", "true")
	t.Setenv("DOCXMERGE_MAX_BLOCK_DEPTH", "7")
	t.Setenv("DOCXMERGE_DEFAULT_IMAGE_SIZE", "64")

	config := ConfigFromEnvironment()
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.StrictMode)
	assert.Equal(t, 7, config.MaxBlockDepth)
	assert.Equal(t, 64, config.DefaultImageSize)
}

func TestConfigFromFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "logLevel: warn\nstrictMode: true\nmaxBlockDepth: 20\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		config, err := ConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", config.LogLevel)
		assert.True(t, config.StrictMode)
		assert.Equal(t, 20, config.MaxBlockDepth)
		// unset fields keep defaults
		assert.Equal(t, 120, config.DefaultImageSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logLevel: [\n"), 0o644))
		_, err := ConfigFromFile(path)
		require.Error(t, err)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o644))
		_, err := ConfigFromFile(path)
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.MaxBlockDepth = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.DefaultImageSize = -1
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.LogLevel = "verbose"
	assert.Error(t, config.Validate())
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("1"))
	assert.True(t, parseBool("Yes"))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool("0"))
	assert.False(t, parseBool(""))
	assert.False(t, parseBool("banana"))
}
