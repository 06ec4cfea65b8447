package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otltemplate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IgnoreRelations)
	assert.True(t, cfg.FilterAttributes)
	assert.Nil(t, cfg.ClassURIs)
	assert.Equal(t, 1, cfg.DummyRows)
	assert.True(t, cfg.AddGeometry)
	assert.False(t, cfg.AttributeInfo)
	assert.False(t, cfg.TagDeprecated)
	assert.True(t, cfg.ChoiceLists)
	assert.True(t, cfg.SplitPerType)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "localhost:8080", cfg.Server.Address)
	assert.Equal(t, 16, cfg.Server.CacheSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 64, cfg.Server.Render.Size)
	assert.Equal(t, 10*time.Minute, cfg.Server.Render.TTL)
	assert.Empty(t, cfg.Server.Redis.Addr)
	assert.Empty(t, cfg.Server.Auth.Secret)
	assert.Equal(t, 24*time.Hour, cfg.Server.Auth.TokenTTL)

	req := cfg.Request("subset.db", "out.xlsx")
	assert.Nil(t, req.ClassURIs, "absent class_uris means every class")
	assert.Equal(t, "subset.db", req.SubsetPath)
}

func TestLoadWithConfigFile(t *testing.T) {
	path := writeConfig(t, `
ignore_relations: false
class_uris:
  - https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#Camera
dummy_data_rows: 3
add_attribute_info: true
tag_deprecated: true
split_per_type: false
model_directory: ./model
workers: 4
seed: 42
log:
  level: debug
server:
  address: 0.0.0.0:9000
  cache_size: 4
  render_cache:
    size: 0
    ttl: 1h
  redis:
    addr: redis:6379
    db: 2
watch:
  debounce: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	req := cfg.Request("subset.db", "out.csv")
	assert.False(t, req.IgnoreRelations)
	assert.Equal(t, []string{"https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#Camera"}, req.ClassURIs)
	assert.Equal(t, 3, req.DummyRows)
	assert.True(t, req.AttributeInfo)
	assert.True(t, req.TagDeprecated)
	assert.False(t, req.SplitPerType)
	assert.Equal(t, "./model", req.ModelDirectory)
	assert.Equal(t, int64(42), req.Seed)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)
	assert.Equal(t, 4, cfg.Server.CacheSize)
	assert.Equal(t, 0, cfg.Server.Render.Size)
	assert.Equal(t, time.Hour, cfg.Server.Render.TTL)
	assert.Equal(t, "redis:6379", cfg.Server.Redis.Addr)
	assert.Equal(t, 2, cfg.Server.Redis.DB)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestLoadExplicitEmptyClassList(t *testing.T) {
	cfg, err := Load(writeConfig(t, "class_uris: []\n"))
	require.NoError(t, err)

	req := cfg.Request("subset.db", "out.xlsx")
	require.NotNil(t, req.ClassURIs)
	assert.Empty(t, req.ClassURIs)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("OTLTEMPLATE_DUMMY_DATA_ROWS", "5")
	t.Setenv("OTLTEMPLATE_SERVER_ADDRESS", ":7000")
	t.Setenv("OTLTEMPLATE_ADD_GEOMETRY", "false")
	t.Setenv("OTLTEMPLATE_SERVER_REDIS_ADDR", "cache:6379")

	cfg, err := Load(writeConfig(t, "dummy_data_rows: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.DummyRows)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.False(t, cfg.AddGeometry)
	assert.Equal(t, "cache:6379", cfg.Server.Redis.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative rows", "dummy_data_rows: -1\n", "dummy_data_rows"},
		{"negative workers", "workers: -2\n", "workers"},
		{"zero cache", "server:\n  cache_size: 0\n", "server.cache_size"},
		{"negative render cache", "server:\n  render_cache:\n    size: -1\n", "server.render_cache.size"},
		{"short secret", "server:\n  auth:\n    secret: abc\n", "server.auth.secret"},
		{"unknown level", "log:\n  level: loud\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
