package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/configs"
	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/pkg/types"
)

func memoryConfig() *types.AppConfig {
	return &types.AppConfig{
		Store: &types.UserStoreConfig{Backend: types.StringPtr(storeconfig.BackendMemory)},
		Log:   &types.UserLogConfig{Level: types.StringPtr("error")},
	}
}

func TestLoadAppConfigPrecedence(t *testing.T) {
	direct := memoryConfig()
	cfg, err := loadAppConfig(newOptions(WithAppConfig(direct), WithEmbeddedConfig([]byte("{"))))
	require.NoError(t, err)
	assert.Same(t, direct, cfg)

	cfg, err = loadAppConfig(newOptions(WithEmbeddedConfig(configs.GetDevelopmentConfig())))
	require.NoError(t, err)
	require.NotNil(t, cfg.Store)
	assert.Equal(t, storeconfig.BackendBadger, *cfg.Store.Backend)

	_, err = loadAppConfig(newOptions(WithEmbeddedConfig([]byte("{"))))
	assert.Error(t, err)
}

func TestLoadAppConfigFromFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	dir := t.TempDir()

	cfg, err := loadAppConfig(newOptions(WithConfigFile(filepath.Join(dir, "missing.json"))))
	require.NoError(t, err)
	assert.Nil(t, cfg.Store, "missing file falls back to defaults")

	path := filepath.Join(dir, "prover.json")
	require.NoError(t, os.WriteFile(path, configs.GetProductionConfig(), 0o600))
	cfg, err = loadAppConfig(newOptions(WithConfigFile(path)))
	require.NoError(t, err)
	assert.Equal(t, storeconfig.BackendRedis, *cfg.Store.Backend)

	// 环境变量优先
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	t.Setenv(EnvConfigPath, bad)
	_, err = loadAppConfig(newOptions(WithConfigFile(path)))
	assert.Error(t, err)
}

func TestDependencyGraphResolves(t *testing.T) {
	b := NewBootstrap(newOptions(WithAppConfig(memoryConfig())))
	require.NoError(t, b.CreateFxApp())
}

func TestStartStopWithoutAPI(t *testing.T) {
	a, err := Start(context.Background(), WithAppConfig(memoryConfig()), WithoutAPI())
	require.NoError(t, err)
	require.NoError(t, a.Stop())
}
