package config

import (
	"os"
)

const (
	apiBaseURLVar     = "API_BASE_URL"
	appNameVar        = "APP_NAME"
	folderEnvVar      = "FOLDER"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	tokenBackendVar   = "TOKEN_BACKEND"
	redisURLVar       = "REDIS_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"
)

// TokenBackend selects where the bearer token is persisted between runs.
type TokenBackend string

const (
	TokenBackendFile  TokenBackend = "file"
	TokenBackendRedis TokenBackend = "redis"
)

type EnvVars struct {
	file FileValues
}

var _ EnvConfig = EnvVars{}

// GetAPIBaseURL returns the root every API path is resolved against, e.g. "http://localhost:8080/api"
func (e EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, orDefault(e.file.APIBaseURL, "http://localhost:8080/api"))
}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, orDefault(e.file.AppName, "Storefront"))
}

func (e EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, orDefault(e.file.DataFolder, "./data"))
}

func (e EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return orDefault(e.file.Env, "DEV")
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, orDefault(e.file.LogLevel, "info"))
}

func (e EnvVars) GetTokenBackend() TokenBackend {
	switch TokenBackend(GetEnv(tokenBackendVar, e.file.TokenBackend)) {
	case TokenBackendRedis:
		return TokenBackendRedis
	default:
		return TokenBackendFile
	}
}

func (e EnvVars) GetRedisURL() string {
	return GetEnv(redisURLVar, orDefault(e.file.RedisURL, "redis://localhost:6379/0"))
}

// GetRequestTimeout returns a time.ParseDuration string. Empty means no client-side timeout.
func (e EnvVars) GetRequestTimeout() string {
	return GetEnv(requestTimeoutVar, e.file.RequestTimeout)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
