package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Extra string `yaml:"extra"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "port: 9000\n")
	cfg := sample{Name: "default", Port: 1}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	var cfg sample
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeFile(t, "port: [\n"), &cfg); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil || found {
		t.Fatalf("LoadOptional missing = %v, %v", found, err)
	}
	if cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg = sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("invalid defaults should still fail validation")
	}

	found, err = LoadOptional(writeFile(t, "port: 7\n"), &cfg)
	if err != nil || !found || cfg.Port != 7 {
		t.Errorf("LoadOptional present = %v, %v, %+v", found, err, cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ANSUZ_SET", "value")
	t.Setenv("ANSUZ_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${ANSUZ_SET}", "value"},
		{"$ANSUZ_SET", "$ANSUZ_SET"},
		{"${ANSUZ_UNSET}", ""},
		{"${ANSUZ_UNSET:-fallback}", "fallback"},
		{"${ANSUZ_EMPTY:-fallback}", "fallback"},
		{"${ANSUZ_SET:-fallback}", "value"},
		{"port: ${ANSUZ_PORT:-8080}", "port: 8080"},
		{"admin:$2a$10$abc", "admin:$2a$10$abc"},
		{"${1BAD}", "${1BAD}"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_KeepsBcryptHashes(t *testing.T) {
	const hash = "$2a$10$G.uZOOw5f1n4kqGSLFtKSe3dlCwaJdTiW7oTtNWUbrVH8vYyW3rWy"
	t.Setenv("ANSUZ_TEST_HASHED", "bob:"+hash)

	path := writeFile(t, "port: 1\nname: \"admin:"+hash+"\"\nextra: ${ANSUZ_TEST_HASHED}\n")
	var cfg sample
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "admin:"+hash {
		t.Errorf("inline hash = %q", cfg.Name)
	}
	if cfg.Extra != "bob:"+hash {
		t.Errorf("env hash = %q", cfg.Extra)
	}
}
