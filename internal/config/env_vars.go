package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	baseURLVar     = "BASE_URL"
	logLevelVar    = "LOG_LEVEL"
	databaseURLVar = "DATABASE_URL"
	redisURLVar    = "REDIS_URL"
)

func (c mainConfig) GetPort() string {
	port := c.v.GetString(portEnvVar)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.v.GetString(appNameVar)
}

func (c mainConfig) GetEnv() string {
	return strings.ToUpper(c.v.GetString(envVar))
}

// GetBaseURL returns the externally visible base URL of this service (e.g., "https://sync.example.com").
// The default redirect URL for the authorization callback is derived from it.
func (c mainConfig) GetBaseURL() string {
	return strings.TrimSuffix(c.v.GetString(baseURLVar), "/")
}

func (c mainConfig) GetLogLevel() string {
	return c.v.GetString(logLevelVar)
}

func (c mainConfig) GetDatabaseURL() string {
	return c.v.GetString(databaseURLVar)
}

// GetRedisURL returns the redis connection URL for the token cache. Empty disables redis.
func (c mainConfig) GetRedisURL() string {
	return c.v.GetString(redisURLVar)
}
