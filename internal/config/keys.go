package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Names of the api keys the external services need.
const (
	ImageEditKey = "CLAID_API_KEY"
	DescribeKey  = "DESCRIBE_API_KEY"
)

var ErrKeyNotFound = errors.New("api key not found")

// LookupKey returns the api key stored under name. The environment takes
// precedence over the secrets file.
func LookupKey(name, secretsFile string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	secrets, err := readSecrets(secretsFile)
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(secrets[name]); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set the environment variable %s or add it to %s", ErrKeyNotFound, name, secretsFile)
}

// SaveKey stores value under name in the secrets file, which is only
// readable by its owner.
func SaveKey(secretsFile, name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty api key")
	}
	secrets, err := readSecrets(secretsFile)
	if err != nil {
		return err
	}
	secrets[name] = value
	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsFile, data, 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(secretsFile, 0600)
}

// Mask hides all but the last show characters of key.
func Mask(key string, show int) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if show > len(key) {
		show = len(key)
	}
	return strings.Repeat("*", len(key)-show) + key[len(key)-show:]
}

func readSecrets(path string) (map[string]string, error) {
	secrets := map[string]string{}
	if path == "" {
		return secrets, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return secrets, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("invalid secrets file %s: %w", path, err)
	}
	return secrets, nil
}
