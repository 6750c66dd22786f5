package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ILQ_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBDriver != "sqlite" || cfg.SessionTTL != 8*time.Hour || cfg.Mode != ModeOffline {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SecureCookies() {
		t.Fatal("offline default should not force secure cookies")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ilq.yaml")
	yml := `
mode: online
db_driver: postgres
db_dsn: postgres://db/ilq
session_ttl: 30m
log_level: debug
roles:
  guest: [page:view, question:viewall]
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_DSN", "postgres://override/ilq")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != ModeOnline || cfg.DBDriver != "postgres" || cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.DBDSN != "postgres://override/ilq" {
		t.Fatalf("env did not override: %s", cfg.DBDSN)
	}
	if got := cfg.Roles["guest"]; len(got) != 2 || got[1] != "question:viewall" {
		t.Fatalf("roles = %v", cfg.Roles)
	}
	if got := cfg.CORSOrigins(); len(got) != 1 || got[0] != "https://lms.mindengage.ai" {
		t.Fatalf("cors = %v", got)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.DBDriver = "mysql" },
		"secret":   func(c *Config) { c.AuthSecret = "short" },
		"hash":     func(c *Config) { c.AdminPassHash = "plaintext" },
		"loglevel": func(c *Config) { c.LogLevel = "loud" },
		"ttl":      func(c *Config) { c.SessionTTL = 0 },
		"google":   func(c *Config) { c.GoogleClientID = "cid" },
		"redirect": func(c *Config) { c.GoogleRedirectURI = "not a url" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mut(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.HasPrefix(err.Error(), "config: ") {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("CORS_ORIGINS_OFFLINE", " http://a , ,http://b")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CORSOriginsOffline; len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("csv = %q", got)
	}
}
