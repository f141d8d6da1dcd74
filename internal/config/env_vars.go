package config

import (
	"os"
	"strconv"
)

const (
	appNameVar         = "APP_NAME"
	baseURLVar         = "API_BASE_URL"
	requestTimeoutVar  = "REQUEST_TIMEOUT"
	maxAttemptsVar     = "RETRY_MAX_ATTEMPTS"
	baseDelayMsVar     = "RETRY_BASE_DELAY_MS"
	credentialsPathVar = "CREDENTIALS_PATH"
	credentialsKeyVar  = "CREDENTIALS_KEY"
)

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Grocery Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the backend base URL all requests are issued against.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRequestTimeout returns the per-request timeout as a duration string.
func (EnvVars) GetRequestTimeout() string {
	return GetEnv(requestTimeoutVar, "30s")
}

func (EnvVars) GetMaxAttempts() int {
	return GetEnvInt(maxAttemptsVar, 3)
}

func (EnvVars) GetBaseDelayMs() int {
	return GetEnvInt(baseDelayMsVar, 250)
}

// GetCredentialsPath returns the file the credential pair is persisted to.
// Empty means in-memory only.
func (EnvVars) GetCredentialsPath() string {
	return GetEnv(credentialsPathVar, "")
}

// GetCredentialsKey returns the hex encoded key sealing the credential file.
func (EnvVars) GetCredentialsKey() string {
	return GetEnv(credentialsKeyVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
