package config

import (
	"os"
	"path/filepath"
)

const stateDBVar = "STATE_DB"

type Store struct{}

var _ StoreConfig = Store{}

// GetStateDBPath defaults to ~/.quiz-admin/state.db
func (Store) GetStateDBPath() string {
	if p := GetEnv(stateDBVar, ""); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data/state.db"
	}
	return filepath.Join(home, ".quiz-admin", "state.db")
}
