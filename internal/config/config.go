package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode   `yaml:"mode" validate:"oneof=offline online"`
	HTTPAddr  string `yaml:"http_addr" validate:"required"`
	PublicURL string `yaml:"public_url" validate:"omitempty,url"`
	SiteID    string `yaml:"site_id" validate:"required"`

	DBDriver string `yaml:"db_driver" validate:"oneof=sqlite postgres"`
	DBDSN    string `yaml:"db_dsn"`

	AuthSecret      string        `yaml:"auth_secret" validate:"required,min=16"`
	SessionTTL      time.Duration `yaml:"session_ttl" validate:"gt=0"`
	EnableGuestAuth bool          `yaml:"enable_guest_auth"`

	// Google sign-in is mounted when a client id is set.
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret" validate:"required_with=GoogleClientID"`
	GoogleRedirectURI  string `yaml:"google_redirect_uri" validate:"omitempty,url"`
	GoogleAllowedHD    string `yaml:"google_allowed_hd"`

	AdminUser     string `yaml:"admin_user" validate:"required"`
	AdminPassHash string `yaml:"admin_pass_hash" validate:"required,startswith=$2"` // bcrypt

	CORSOriginsOnline  []string `yaml:"cors_origins_online" validate:"dive,required"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline" validate:"dive,required"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`

	// Roles replaces the capability list of the named roles.
	Roles map[string][]string `yaml:"roles"`
}

// CORSOrigins returns the origin list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// SecureCookies is true when the site is served over https.
func (c Config) SecureCookies() bool {
	return c.Mode == ModeOnline || strings.HasPrefix(c.PublicURL, "https://")
}

func Defaults() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		SiteID:             "local",
		DBDriver:           "sqlite",
		AuthSecret:         "dev-secret-change-me-please",
		SessionTTL:         8 * time.Hour,
		AdminUser:          "admin",
		AdminPassHash:      "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji",
		CORSOriginsOnline:  []string{"https://lms.mindengage.ai"},
		CORSOriginsOffline: []string{"http://localhost:3000", "http://localhost:3010"},
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads defaults, then the YAML file named by path (or ILQ_CONFIG),
// then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("ILQ_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a file.
func FromEnv() (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

var validate = validator.New()

func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
	}
	return err
}

func applyEnv(c *Config) {
	c.Mode = Mode(envOr("MODE", string(c.Mode)))
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.PublicURL = envOr("PUBLIC_URL", c.PublicURL)
	c.SiteID = envOr("SITE_ID", c.SiteID)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.AuthSecret = envOr("AUTH_SECRET", c.AuthSecret)
	c.SessionTTL = envDuration("SESSION_TTL", c.SessionTTL)
	c.EnableGuestAuth = envBool("ENABLE_GUEST_AUTH", c.EnableGuestAuth)
	c.GoogleClientID = envOr("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = envOr("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GoogleRedirectURI = envOr("GOOGLE_REDIRECT_URI", c.GoogleRedirectURI)
	c.GoogleAllowedHD = envOr("GOOGLE_ALLOWED_HD", c.GoogleAllowedHD)
	c.AdminUser = envOr("ADMIN_USER", c.AdminUser)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	c.CORSOriginsOnline = csvOr("CORS_ORIGINS_ONLINE", c.CORSOriginsOnline)
	c.CORSOriginsOffline = csvOr("CORS_ORIGINS_OFFLINE", c.CORSOriginsOffline)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}

func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
