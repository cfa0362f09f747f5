package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	SyncConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetDatabaseURL() string
	GetRedisURL() string
}

type mainConfig struct {
	v *viper.Viper
}

var _ Config = mainConfig{}

// New builds a Config from defaults and environment variables only.
func New() Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return mainConfig{v: v}
}

// NewFromViper wraps an existing viper instance. Missing keys fall back to the defaults.
func NewFromViper(v *viper.Viper) Config {
	setDefaults(v)
	return mainConfig{v: v}
}

// Load reads an optional ledgersync.yaml (cwd, ./config, $HOME/.ledgersync) on top of the
// defaults, lets environment variables override it and validates the required settings.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ledgersync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.ledgersync")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	c := mainConfig{v: v}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every required setting that is empty.
func Validate(c Config) error {
	var missing []string
	if c.GetClientID() == "" {
		missing = append(missing, clientIDVar)
	}
	if c.GetClientSecret() == "" {
		missing = append(missing, clientSecretVar)
	}
	if c.GetEncryptionKey() == "" {
		missing = append(missing, encryptionKeyVar)
	}
	if c.GetDatabaseURL() == "" {
		missing = append(missing, databaseURLVar)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "8080")
	v.SetDefault(appNameVar, "Ledger Sync")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(baseURLVar, "http://localhost:8080")
	v.SetDefault(logLevelVar, "info")

	v.SetDefault(scopesVar, strings.Join(defaultScopes, " "))
	v.SetDefault(requestsPerMinuteVar, 60)

	v.SetDefault(tokenCacheEnabledVar, false)
	v.SetDefault(authStateTTLVar, 15*time.Minute)

	v.SetDefault(syncScheduleVar, "@every 15m")
	v.SetDefault(syncConcurrencyVar, 5)
	v.SetDefault(syncTimeoutVar, 5*time.Minute)
	v.SetDefault(syncModeVar, SyncModeIncremental)
}
