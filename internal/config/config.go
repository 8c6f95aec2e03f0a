package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/veil-waf/veil-edge/internal/kasada"
)

// ErrMissingToken is returned by Validate when KASADA_REQUIRE_TOKEN is set
// but KASADA_TOKEN is empty.
var ErrMissingToken = errors.New("config: KASADA_TOKEN is required")

// Config is the edge configuration, read once at startup.
type Config struct {
	Port               string
	OpsPort            string
	OriginURL          string
	OriginTrustedHosts []string

	Kasada       kasada.Endpoint
	KasadaToken  string
	RequireToken bool

	DatabaseURL string
	OpsToken    string

	TLSDomains []string
	ACMEEmail  string
	Production bool

	LogLevel string
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:               or(getenv("PORT"), "8080"),
		OpsPort:            or(getenv("OPS_PORT"), "9090"),
		OriginURL:          getenv("ORIGIN_URL"),
		OriginTrustedHosts: list(getenv("ORIGIN_TRUSTED_HOSTS")),
		Kasada: kasada.Endpoint{
			Host:     getenv("KASADA_API_HOST"),
			AppID:    getenv("KASADA_APP_ID"),
			TenantID: getenv("KASADA_TENANT_ID"),
			Version:  or(getenv("KASADA_API_VERSION"), kasada.DefaultAPIVersion),
		},
		KasadaToken: getenv("KASADA_TOKEN"),
		DatabaseURL: getenv("DATABASE_URL"),
		OpsToken:    getenv("OPS_TOKEN"),
		TLSDomains:  list(getenv("TLS_DOMAINS")),
		ACMEEmail:   getenv("ACME_EMAIL"),
		Production:  getenv("EDGE_ENV") == "production",
		LogLevel:    getenv("LOG_LEVEL"),
	}

	if v := getenv("KASADA_REQUIRE_TOKEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: KASADA_REQUIRE_TOKEN: %w", err)
		}
		cfg.RequireToken = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.OriginURL == "" {
		return errors.New("config: ORIGIN_URL is required")
	}
	u, err := url.Parse(c.OriginURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: ORIGIN_URL %q must be an absolute http(s) URL", c.OriginURL)
	}
	if c.Kasada.Host == "" || c.Kasada.AppID == "" || c.Kasada.TenantID == "" {
		return errors.New("config: KASADA_API_HOST, KASADA_APP_ID and KASADA_TENANT_ID are required")
	}
	if c.RequireToken && c.KasadaToken == "" {
		return ErrMissingToken
	}
	return nil
}

// Origin returns the parsed ORIGIN_URL. It is only valid after Validate.
func (c *Config) Origin() *url.URL {
	u, _ := url.Parse(c.OriginURL)
	return u
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func list(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
