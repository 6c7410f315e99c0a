package config

import (
	"time"
)

type Config interface {
	EnvConfig
	CorsConfig
	ConsoleConfig
	BackendConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// ConsoleConfig covers the operator identity and the fixed access-control policy.
type ConsoleConfig interface {
	GetOperatorEmail() string
	GetOperatorPasswordHash() (string, error)
	GetSessionSigningKey() []byte
	GetSessionTTL() time.Duration
	GetCooldownWindow() time.Duration
	GetReconcileDelay() time.Duration
	GetPauseGrace() time.Duration
}

type BackendConfig interface {
	GetBackendBaseURL() string
	GetBackendTimeout() time.Duration
	GetBackendClientID() string
	GetBackendClientSecret() string
	GetBackendTokenURL() string
}

type StoreConfig interface {
	GetStateDBPath() string
}

type mainConfig struct {
	EnvVars
	Cors
	Console
	Backend
	Store
}

// New builds the configuration. When CONFIG_FILE is set the YAML file it names
// is loaded as a fallback layer beneath the environment.
func New() (Config, error) {
	if path := GetEnv(configFileVar, ""); path != "" {
		if err := LoadFile(path); err != nil {
			return nil, err
		}
	}
	return mainConfig{}, nil
}
