package config

import "os"

// DefaultPath is the config file read when no explicit path is given.
// CONFIG_PATH overrides it.
const DefaultPath = "config.yaml"

// Path resolves the config file location.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}
