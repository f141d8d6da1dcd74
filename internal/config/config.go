package config

type Config interface {
	EnvConfig
	HTTPConfig
	RetryConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type HTTPConfig interface {
	GetBaseURL() string
	GetRequestTimeout() string
}

type RetryConfig interface {
	GetMaxAttempts() int
	GetBaseDelayMs() int
}

type StorageConfig interface {
	GetCredentialsPath() string
	GetCredentialsKey() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
