package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const configFileEnvVar = "STOREFRONT_CONFIG"

type Config interface {
	EnvConfig
	StorefrontConfig
	SessionConfig
}

type EnvConfig interface {
	GetAPIBaseURL() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	GetTokenBackend() TokenBackend
	GetRedisURL() string
	GetRequestTimeout() string
}

type mainConfig struct {
	EnvVars
	Storefront
	Session
}

// New returns a Config backed by environment variables only.
func New() Config {
	return mainConfig{}
}

// Load returns a Config backed by environment variables, falling back to the values in the
// YAML file at path. An empty path uses STOREFRONT_CONFIG, and when that is unset too the
// result is identical to New.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(configFileEnvVar)
	}
	if path == "" {
		return New(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[config.Load] read config file")
	}

	var fv FileValues
	if err := yaml.Unmarshal(b, &fv); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse config file")
	}

	return mainConfig{EnvVars: EnvVars{file: fv}, Session: Session{file: fv}}, nil
}

// FileValues is the YAML shape of a storefront config file. Every field is optional; an
// environment variable of the same meaning always wins.
type FileValues struct {
	APIBaseURL     string `yaml:"api_base_url"`
	AppName        string `yaml:"app_name"`
	DataFolder     string `yaml:"data_folder"`
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"log_level"`
	TokenBackend   string `yaml:"token_backend"`
	RedisURL       string `yaml:"redis_url"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
	RequestTimeout string `yaml:"request_timeout"`
}
