// Package config loads the storefront settings. Values come from built-in
// defaults, then an optional YAML file named by CONFIG_FILE, then a .env
// file, then the process environment; later sources win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	MailFrom     string `yaml:"mail_from"`
	AdminEmail   string `yaml:"admin_email"`

	MediaDir string `yaml:"media_dir"`
	MediaURL string `yaml:"media_url"`

	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCClientID string `yaml:"oidc_client_id"`

	CORSOrigins []string `yaml:"cors_origins"`

	// FormRateLimit is the sustained number of contact/login submissions
	// accepted per client per minute.
	FormRateLimit int `yaml:"form_rate_limit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		DBDriver:      "sqlite",
		DBDSN:         "store.db",
		SessionTTL:    14 * 24 * time.Hour,
		SMTPHost:      "localhost",
		SMTPPort:      25,
		MailFrom:      "webmaster@localhost",
		AdminEmail:    "admin@electronicsstore.com",
		MediaDir:      "media",
		MediaURL:      "/media/",
		FormRateLimit: 10,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds the configuration from all sources.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HTTP_ADDR":      &c.HTTPAddr,
		"DB_DRIVER":      &c.DBDriver,
		"DB_DSN":         &c.DBDSN,
		"SESSION_SECRET": &c.SessionSecret,
		"SMTP_HOST":      &c.SMTPHost,
		"SMTP_USERNAME":  &c.SMTPUsername,
		"SMTP_PASSWORD":  &c.SMTPPassword,
		"MAIL_FROM":      &c.MailFrom,
		"ADMIN_EMAIL":    &c.AdminEmail,
		"MEDIA_DIR":      &c.MediaDir,
		"MEDIA_URL":      &c.MediaURL,
		"OIDC_ISSUER":    &c.OIDCIssuer,
		"OIDC_CLIENT_ID": &c.OIDCClientID,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FORMAT":     &c.LogFormat,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SMTP_PORT":       &c.SMTPPort,
		"FORM_RATE_LIMIT": &c.FormRateLimit,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v, ok := lookup("SECURE_COOKIES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SECURE_COOKIES: %w", err)
		}
		c.SecureCookies = b
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.CORSOrigins = append(c.CORSOrigins, origin)
			}
		}
	}
	return nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is not set"))
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if (c.OIDCIssuer == "") != (c.OIDCClientID == "") {
		errs = append(errs, errors.New("OIDC_ISSUER and OIDC_CLIENT_ID must be set together"))
	}
	if c.FormRateLimit < 1 {
		errs = append(errs, errors.New("FORM_RATE_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

// SMTPAddr is the host:port of the mail relay.
func (c Config) SMTPAddr() string {
	return c.SMTPHost + ":" + strconv.Itoa(c.SMTPPort)
}
