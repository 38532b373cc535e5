package config

import "path/filepath"

type SessionConfig interface {
	GetTokenKey() string
	GetTokenFile(dataFolder string) string
	GetRedisKeyPrefix() string
}

type Session struct {
	file FileValues
}

var _ SessionConfig = Session{}

// GetTokenKey is the well-known storage key the bearer token lives under
func (Session) GetTokenKey() string {
	return "token"
}

func (s Session) GetTokenFile(dataFolder string) string {
	return filepath.Join(dataFolder, s.GetTokenKey())
}

func (s Session) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", orDefault(s.file.RedisKeyPrefix, "storefront:"))
}
