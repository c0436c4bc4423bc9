package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skillsenselab/workshopkit/logger"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Server        struct {
		Port int `yaml:"port" mapstructure:"port"`
	} `yaml:"server" mapstructure:"server"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_FromYAML(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "config.yml", `
name: facilitator
environment: staging
server:
  port: 9090
logging:
  level: debug
`)

	var cfg testConfig
	if err := LoadConfig("facilitator", &cfg, WithConfigFile(file)); err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Name != "facilitator" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "config.yml", `
name: facilitator
server:
  port: 9090
`)
	t.Setenv("SERVER_PORT", "7070")

	var cfg testConfig
	if err := LoadConfig("facilitator", &cfg, WithConfigFile(file)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want env override 7070", cfg.Server.Port)
	}
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "SERVER_PORT=6060\n")
	t.Cleanup(func() { os.Unsetenv("SERVER_PORT") })

	var cfg testConfig
	if err := LoadConfig("facilitator", &cfg, WithEnvFile(envFile)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("server.port = %d, want 6060 from .env", cfg.Server.Port)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "config.yml", "::: not yaml :::")

	var cfg testConfig
	if err := LoadConfig("facilitator", &cfg, WithConfigFile(file)); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("STORAGE_S3_BUCKET")
	want := map[string]bool{
		"storage_s3_bucket": false,
		"storage.s3.bucket": false,
		"storage.s3_bucket": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing variant %q in %v", k, variants)
		}
	}
}

func TestServiceConfig_DefaultsAndValidate(t *testing.T) {
	c := &ServiceConfig{Name: "facilitator"}
	c.ApplyDefaults()

	if c.Environment != "development" {
		t.Errorf("environment = %q", c.Environment)
	}
	if !c.Debug {
		t.Error("development must enable debug")
	}
	if c.Logging.ServiceName != "facilitator" {
		t.Errorf("logging.service_name = %q", c.Logging.ServiceName)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	c.Environment = "outer-space"
	if err := c.Validate(); err == nil {
		t.Error("expected invalid environment to be rejected")
	}

	bad := &ServiceConfig{Name: "x", Environment: "production", Logging: logger.Config{Level: "loud"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid logging level to be rejected")
	}
}
