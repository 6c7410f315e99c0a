package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	logLevelVar     = "LOG_LEVEL"
	logFormatVar    = "LOG_FORMAT"
	configFileVar   = "CONFIG_FILE"
	allowOriginsVar = "ALLOWED_ORIGINS"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Quiz Admin")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetLogFormat returns "console" (human readable) or "json"
func (EnvVars) GetLogFormat() string {
	return GetEnv(logFormatVar, "console")
}

// GetEnv returns the environment value, then the config file value, then defaultValue.
func GetEnv(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := fileValue(envVar); ok && value != "" {
		return value
	}
	return defaultValue
}
