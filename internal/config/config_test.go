package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
port: "8080"
logLevel: info
databaseURL: postgres://localhost/convoai
redisAddr: localhost:6379
jwtSecret: secret
generationBaseURL: http://localhost:8000/v1
generationModel: test-model
accessTokenTTLMinutes: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GenerationModel != "test-model" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AccessTokenTTL().Minutes() != 30 {
		t.Fatalf("ttl = %v", cfg.AccessTokenTTL())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("GENERATION_MODEL", "override-model")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/db" {
		t.Fatalf("databaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.GenerationModel != "override-model" {
		t.Fatalf("generationModel = %q", cfg.GenerationModel)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		remove string
	}{
		{"port", "port:"},
		{"databaseURL", "databaseURL:"},
		{"redisAddr", "redisAddr:"},
		{"jwtSecret", "jwtSecret:"},
		{"generationBaseURL", "generationBaseURL:"},
		{"generationModel", "generationModel:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var kept []string
			for _, line := range strings.Split(validYAML, "\n") {
				if !strings.HasPrefix(strings.TrimSpace(line), tc.remove) {
					kept = append(kept, line)
				}
			}
			_, err := Load(writeConfig(t, strings.Join(kept, "\n")))
			if err == nil || !strings.Contains(err.Error(), "config:") {
				t.Fatalf("expected config error for missing %s, got %v", tc.name, err)
			}
		})
	}
}

func TestLoadAMQPRequiresAppURL(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"\namqpURL: amqp://localhost\n"))
	if err == nil || !strings.Contains(err.Error(), "appURL") {
		t.Fatalf("expected appURL error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
