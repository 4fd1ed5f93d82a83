package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadEnvFile loads KEY=VALUE pairs from a .env file without overriding
// variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) {
	_ = godotenv.Load(path)
}

// LoadFile reads a YAML file of environment keys and applies every key that
// is not already present in the environment. Values may be scalars of any type;
// they are stored in their YAML string form.
//
//	ADMIN_PORTAL_URL: http://admin.internal:3002
//	RECONCILE_BATCH_SIZE: 200
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var values map[string]yaml.Node
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	for key, node := range values {
		if node.Kind != yaml.ScalarNode {
			return fmt.Errorf("config file key %s: expected a scalar value", key)
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, node.Value); err != nil {
			return fmt.Errorf("apply config key %s: %w", key, err)
		}
	}
	return nil
}
