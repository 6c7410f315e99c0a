package config

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The config file uses the lower-case form of the environment variable names:
//
//	backend_base_url: https://api.example.com
//	operator_email: ops@example.com
var (
	fileMu     sync.RWMutex
	fileValues map[string]string
)

// LoadFile reads a flat YAML mapping and installs it as the fallback layer for GetEnv.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "[config.LoadFile] read")
	}
	return loadYAML(data)
}

func loadYAML(data []byte) error {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "[config.LoadFile] yaml")
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = strings.TrimSpace(toString(v))
	}

	fileMu.Lock()
	defer fileMu.Unlock()
	fileValues = values
	return nil
}

// ResetFile drops any loaded file values.
func ResetFile() {
	fileMu.Lock()
	defer fileMu.Unlock()
	fileValues = nil
}

func fileValue(envVar string) (string, bool) {
	fileMu.RLock()
	defer fileMu.RUnlock()
	v, ok := fileValues[envVar]
	return v, ok
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		out, err := yaml.Marshal(t)
		if err != nil {
			return ""
		}
		return string(out)
	}
}
