package config

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	operatorEmailVar        = "OPERATOR_EMAIL"
	operatorPasswordHashVar = "OPERATOR_PASSWORD_HASH"
	operatorPasswordVar     = "OPERATOR_PASSWORD"
	sessionSigningKeyVar    = "SESSION_SIGNING_KEY"
)

// Fixed policy. These are deliberately not overridable from the environment.
const (
	SessionTTL     = 15 * time.Minute
	CooldownWindow = 24 * time.Hour
	ReconcileDelay = 1 * time.Second
	PauseGrace     = 5 * time.Minute
)

type Console struct{}

var _ ConsoleConfig = Console{}

func (Console) GetOperatorEmail() string {
	return GetEnv(operatorEmailVar, "")
}

// GetOperatorPasswordHash returns the bcrypt hash of the operator password.
// A plain OPERATOR_PASSWORD is hashed on the fly when no hash is configured.
func (Console) GetOperatorPasswordHash() (string, error) {
	if hash := GetEnv(operatorPasswordHashVar, ""); hash != "" {
		return hash, nil
	}
	password := GetEnv(operatorPasswordVar, "")
	if password == "" {
		return "", errors.New("[Console.GetOperatorPasswordHash] no operator password configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "[Console.GetOperatorPasswordHash] bcrypt")
	}
	return string(hash), nil
}

func (Console) GetSessionSigningKey() []byte {
	return []byte(GetEnv(sessionSigningKeyVar, ""))
}

func (Console) GetSessionTTL() time.Duration {
	return SessionTTL
}

func (Console) GetCooldownWindow() time.Duration {
	return CooldownWindow
}

func (Console) GetReconcileDelay() time.Duration {
	return ReconcileDelay
}

func (Console) GetPauseGrace() time.Duration {
	return PauseGrace
}
