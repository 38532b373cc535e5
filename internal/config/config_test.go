package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	for _, v := range []string{"API_BASE_URL", "APP_NAME", "FOLDER", "ENV", "LOG_LEVEL", "TOKEN_BACKEND", "REQUEST_TIMEOUT", "STOREFRONT_CONFIG"} {
		t.Setenv(v, "")
	}

	c := config.New()
	require.Equal(t, "http://localhost:8080/api", c.GetAPIBaseURL())
	require.Equal(t, "Storefront", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "info", c.GetLogLevel())
	require.Equal(t, config.TokenBackendFile, c.GetTokenBackend())
	require.Empty(t, c.GetRequestTimeout())
	require.Equal(t, 3500*time.Millisecond, c.GetNotificationTTL())
	require.Equal(t, "token", c.GetTokenKey())
	require.Equal(t, filepath.Join("data", "token"), c.GetTokenFile("data"))
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://shop.example.com/api")
	t.Setenv("TOKEN_BACKEND", "redis")

	c := config.New()
	require.Equal(t, "https://shop.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, config.TokenBackendRedis, c.GetTokenBackend())
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_KEY_PREFIX", "")
	t.Setenv("TOKEN_BACKEND", "")
	t.Setenv("REQUEST_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "storefront.yaml")
	err := os.WriteFile(path, []byte(`
api_base_url: http://shop.internal/api
log_level: warn
token_backend: redis
redis_key_prefix: "shop:"
request_timeout: 10s
`), 0o600)
	require.NoError(t, err)

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://shop.internal/api", c.GetAPIBaseURL())
	require.Equal(t, "debug", c.GetLogLevel(), "env var wins over file")
	require.Equal(t, config.TokenBackendRedis, c.GetTokenBackend())
	require.Equal(t, "shop:", c.GetRedisKeyPrefix())
	require.Equal(t, "10s", c.GetRequestTimeout())
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_base_url: [unterminated"), 0o600))
	_, err = config.Load(path)
	require.Error(t, err)
}
