package config

import "time"

const (
	backendBaseURLVar      = "BACKEND_BASE_URL"
	backendTimeoutVar      = "BACKEND_TIMEOUT"
	backendClientIDVar     = "BACKEND_CLIENT_ID"
	backendClientSecretVar = "BACKEND_CLIENT_SECRET"
	backendTokenURLVar     = "BACKEND_TOKEN_URL"
)

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetBackendBaseURL() string {
	return GetEnv(backendBaseURLVar, "http://localhost:5000")
}

func (Backend) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(backendTimeoutVar, "10s"))
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetBackendClientID, GetBackendClientSecret and GetBackendTokenURL enable
// OAuth2 client-credentials on backend calls when all three are set.
func (Backend) GetBackendClientID() string {
	return GetEnv(backendClientIDVar, "")
}

func (Backend) GetBackendClientSecret() string {
	return GetEnv(backendClientSecretVar, "")
}

func (Backend) GetBackendTokenURL() string {
	return GetEnv(backendTokenURLVar, "")
}
