package config

import "time"

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLanguage() string
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type StorageConfig interface {
	GetCredentialBackend() string
	GetCredentialFile() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Storage
}

func New() Config {
	return mainConfig{}
}
