package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optoutdao/engine/pkg/engine"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("ENGINE_OWNER", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "owner", cfg.Owner)
	assert.False(t, cfg.Telemetry)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENGINE_OWNER", "dao-multisig")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("TELEMETRY", "true")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "dao-multisig", cfg.Owner)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.True(t, cfg.Telemetry)
}

func TestLoadParamsEmptyPath(t *testing.T) {
	params, err := LoadParams("")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultParams(), params)
}

func TestLoadParamsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"min_processor_stake: 500000\nslash_percentage: 25\n"), 0o600))

	params, err := LoadParams(path)
	require.NoError(t, err)
	assert.EqualValues(t, 500000, params.MinProcessorStake)
	assert.Equal(t, 25, params.SlashPercentage)
	// Untouched fields keep defaults.
	assert.Equal(t, engine.DefaultParams().MinUserStake, params.MinUserStake)
}

func TestLoadParamsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slash_percentage: 150\n"), 0o600))

	_, err := LoadParams(path)
	assert.Error(t, err)
}

func TestLoadParamsMissingFile(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
