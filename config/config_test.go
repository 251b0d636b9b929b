package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiresPrefix(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.Validate())
}

func TestValidate_TestingDefaultsPrefix(t *testing.T) {
	c := &Config{Testing: true}
	require.NoError(t, c.Validate())
	assert.Equal(t, "test", c.IdentifierPrefix)
}

func TestValidate_BadPrefix(t *testing.T) {
	for _, prefix := range []string{"4lab", "my-lab", "abcdefghijklm"} {
		c := &Config{IdentifierPrefix: prefix}
		assert.Error(t, c.Validate(), "prefix %q", prefix)
	}
}

func TestValidate_Defaults(t *testing.T) {
	c := &Config{IdentifierPrefix: "grey"}
	require.NoError(t, c.Validate())
	assert.Equal(t, DefaultMaxBatchCreateSize, c.MaxBatchCreateSize)
	assert.Equal(t, 1, c.LinkShards)
}

func TestValidate_ShardClamp(t *testing.T) {
	c := &Config{IdentifierPrefix: "grey", LinkShards: 5000}
	require.NoError(t, c.Validate())
	assert.Equal(t, 256, c.LinkShards)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IDENTIFIER_PREFIX", "grey")
	t.Setenv("SPECIMEN_ADDR", ":9999")
	t.Setenv("MAX_BATCH_CREATE_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "grey", cfg.IdentifierPrefix)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 25, cfg.MaxBatchCreateSize)
	assert.Equal(t, "specimen_items", cfg.ItemsTable)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Env: "production"}).IsProduction())
	assert.False(t, (&Config{Env: "development"}).IsProduction())
}
