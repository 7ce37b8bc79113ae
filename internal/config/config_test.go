package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "deepseek-chat", cfg.Generation.Model)
	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", cfg.Generation.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.True(t, cfg.Generation.UseMock())
	assert.Equal(t, 168*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowAll())
	assert.Equal(t, BackendMemory, cfg.Database.Backend())
	assert.False(t, cfg.S3.Enabled())
	assert.False(t, cfg.Auth.DevLoginEnabled)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_MODEL", "deepseek-reasoner")
	t.Setenv("DATABASE_URL", "postgres://localhost/pb")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.False(t, cfg.Generation.UseMock())
	assert.Equal(t, "deepseek-reasoner", cfg.Generation.Model)
	assert.Equal(t, BackendPostgres, cfg.Database.Backend())
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.CORS.AllowAll())
}

func TestLoadConfigMockModeOverridesKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_MOCK_MODE", "true")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Generation.UseMock())
}

func TestLoadConfigPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)

	t.Setenv("SERVER_ADDRESS", "127.0.0.1:7000")
	cfg, err = LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Address)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  address: ":3000"
database:
  driver: mongodb
  name: pb_file
generation:
  timeout: 15s
s3:
  bucket_name: plans
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, BackendMongo, cfg.Database.Backend())
	assert.Equal(t, "pb_file", cfg.Database.Name)
	assert.Equal(t, 15*time.Second, cfg.Generation.Timeout)
	assert.True(t, cfg.S3.Enabled())
}

func TestDatabaseBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{"empty", DatabaseConfig{}, BackendMemory},
		{"url implies postgres", DatabaseConfig{URL: "postgres://x"}, BackendPostgres},
		{"pg alias", DatabaseConfig{Driver: "PG"}, BackendPostgres},
		{"mongo", DatabaseConfig{Driver: "mongo", URL: "postgres://x"}, BackendMongo},
		{"memory wins over url", DatabaseConfig{Driver: "memory", URL: "postgres://x"}, BackendMemory},
		{"unknown falls back", DatabaseConfig{Driver: "oracle"}, BackendMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Backend())
		})
	}
}

func TestDefaultSecretInRelease(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		secret string
		want   bool
	}{
		{"release with default", "release", DefaultJWTSecret, true},
		{"release with padded default", " RELEASE ", DefaultJWTSecret + " ", true},
		{"release with own secret", "release", "s3cr3t", false},
		{"debug with default", "debug", DefaultJWTSecret, false},
		{"unset mode", "", DefaultJWTSecret, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Server: ServerConfig{Mode: tt.mode}, JWT: JWTConfig{Secret: tt.secret}}
			assert.Equal(t, tt.want, cfg.DefaultSecretInRelease())
		})
	}
}

func TestLoadConfigDefaultSecretInRelease(t *testing.T) {
	t.Setenv("SERVER_MODE", "release")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.DefaultSecretInRelease())

	t.Setenv("JWT_SECRET", "s3cr3t")
	cfg, err = LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.False(t, cfg.DefaultSecretInRelease())
}

func TestNormalizeOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, normalizeOrigins(nil))
	assert.Equal(t, []string{"*"}, normalizeOrigins([]string{" , "}))
	assert.Equal(t, []string{"a", "b", "c"}, normalizeOrigins([]string{"a,b", " c "}))
}
