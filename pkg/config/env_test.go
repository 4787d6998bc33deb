package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/config"
)

type fileConfig struct {
	String   string        `env:"MQ_TEST_STRING"`
	Int      int           `env:"MQ_TEST_INT"`
	Bool     bool          `env:"MQ_TEST_BOOL"`
	List     []string      `env:"MQ_TEST_LIST" envSeparator:","`
	Quoted   string        `env:"MQ_TEST_QUOTED"`
	Empty    string        `env:"MQ_TEST_EMPTY"`
	Priority string        `env:"MQ_TEST_PRIORITY"`
	Unique   string        `env:"MQ_TEST_UNIQUE"`
	Timeout  time.Duration `env:"MQ_TEST_TIMEOUT" envDefault:"15s"`
}

var fileKeys = []string{
	"MQ_TEST_STRING", "MQ_TEST_INT", "MQ_TEST_BOOL", "MQ_TEST_LIST",
	"MQ_TEST_QUOTED", "MQ_TEST_EMPTY", "MQ_TEST_PRIORITY", "MQ_TEST_UNIQUE",
}

// unsetKeys clears keys for the test and restores them afterwards.
func unsetKeys(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadEnv_SingleFile(t *testing.T) {
	unsetKeys(t, fileKeys...)

	require.NoError(t, config.LoadEnv("testdata/.env.custom"))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "custom_value", cfg.String)
	assert.Equal(t, 1234, cfg.Int)
	assert.True(t, cfg.Bool)
	assert.Equal(t, []string{"item1", "item2", "item3"}, cfg.List)
	assert.Equal(t, "quoted value", cfg.Quoted)
	assert.Empty(t, cfg.Empty)
	assert.Equal(t, "custom_file_value", cfg.Priority)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestLoadEnv_LaterFilesOverride(t *testing.T) {
	unsetKeys(t, fileKeys...)

	require.NoError(t, config.LoadEnv("testdata/.env.custom", "testdata/.env.override"))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "override_value", cfg.String)
	assert.Equal(t, 9999, cfg.Int)
	assert.Equal(t, "override_value", cfg.Priority)
	assert.Equal(t, "unique_to_override", cfg.Unique)
	assert.Equal(t, "quoted value", cfg.Quoted)
}

func TestLoadEnv_ProcessEnvWins(t *testing.T) {
	unsetKeys(t, fileKeys...)
	t.Setenv("MQ_TEST_STRING", "from_process")

	require.NoError(t, config.LoadEnv("testdata/.env.custom"))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "from_process", cfg.String)
	assert.Equal(t, 1234, cfg.Int)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestMustLoadEnv(t *testing.T) {
	unsetKeys(t, fileKeys...)

	assert.NotPanics(t, func() {
		config.MustLoadEnv("testdata/.env.custom")
	})
	assert.Panics(t, func() {
		config.MustLoadEnv("testdata/non_existent_file.env")
	})
}
