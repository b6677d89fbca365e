package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString reads a string environment variable, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting whether it was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool reads a boolean environment variable, reporting whether it was set.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}
