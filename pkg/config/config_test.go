package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, "rpc", cfg.Executor.Mode)
	assert.Equal(t, "postgres", cfg.Cache.FuzzyBackend)
	assert.Equal(t, 2, cfg.Pipeline.MaxAttempts)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("ASK_CRICKET_EXECUTOR_MODE", "direct")
	t.Setenv("ASK_CRICKET_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "direct", cfg.Executor.Mode)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Executor: ExecutorConfig{Mode: "rpc"},
		Cache:    CacheConfig{FuzzyBackend: "none"},
		Pipeline: PipelineConfig{MaxAttempts: 2},
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Executor.Mode = "stream"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Cache.FuzzyBackend = "elastic"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Pipeline.MaxAttempts = 0
	assert.Error(t, bad.Validate())

	milvus := cfg
	milvus.Cache.FuzzyBackend = "milvus"
	assert.Error(t, milvus.Validate())
	milvus.Zilliz.MaxDistance = 0.35
	assert.NoError(t, milvus.Validate())
}

func TestLoadMilvusRequiresMaxDistance(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("ASK_CRICKET_CACHE_FUZZYBACKEND", "milvus")

	_, err := Load()
	require.Error(t, err)

	viper.Reset()
	t.Setenv("ASK_CRICKET_ZILLIZ_MAXDISTANCE", "0.4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Zilliz.MaxDistance)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
