package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const devSecret = "supersecret-dev-key"

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AuthHMACSecret  string
	TokenTTL        time.Duration
	EnableLocalAuth bool

	// Bootstrap admin, created or promoted at startup when both are set.
	AdminEmail    string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// RedactAnswerKeys strips correct_option from test payloads sent to
	// students.
	RedactAnswerKeys bool

	LogLevel  slog.Level
	LogFormat string // text|json

	EnableGoogleAuth   bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string // e.g., PUBLIC_URL + "/auth/google/callback"
	GoogleAllowedHD    string // optional: restrict to one hosted domain
}

// CORSOrigins returns the origin list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// FromEnv reads the process environment. Variables from a dotenv file
// (DOTENV_FILE, default .env, skipped when absent) come next. When
// CONFIG_FILE names a YAML file its keys (the variable names in lower case)
// fill in anything still unset.
func FromEnv() (Config, error) {
	return load(os.Getenv)
}

type source struct {
	getenv func(string) string
	dotenv map[string]string
	file   map[string]string
}

func (s source) get(k string) string {
	if v := s.getenv(k); v != "" {
		return v
	}
	if v := s.dotenv[k]; v != "" {
		return v
	}
	return s.file[strings.ToLower(k)]
}

func readDotenv(path string, required bool) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dotenv file %s: %w", path, err)
	}
	return m, nil
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToLower(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToLower(k)] = fmt.Sprint(t)
		}
	}
	return out, nil
}

func load(getenv func(string) string) (Config, error) {
	src := source{getenv: getenv}
	dotenv, explicit := getenv("DOTENV_FILE"), true
	if dotenv == "" {
		dotenv, explicit = ".env", false
	}
	d, err := readDotenv(dotenv, explicit)
	if err != nil {
		return Config{}, err
	}
	src.dotenv = d
	if p := src.get("CONFIG_FILE"); p != "" {
		f, err := readFile(p)
		if err != nil {
			return Config{}, err
		}
		src.file = f
	}

	mode := Mode(src.or("MODE", string(ModeOffline)))
	if mode != ModeOffline && mode != ModeOnline {
		return Config{}, fmt.Errorf("MODE must be %q or %q, got %q", ModeOffline, ModeOnline, mode)
	}
	pub := src.get("PUBLIC_URL")

	ttl, err := time.ParseDuration(src.or("TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL: invalid duration %q", src.get("TOKEN_TTL"))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(src.or("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	format := strings.ToLower(src.or("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be text or json, got %q", format)
	}

	cfg := Config{
		Mode:               mode,
		HTTPAddr:           src.or("HTTP_ADDR", ":8080"),
		PublicURL:          pub,
		DBDriver:           src.or("DB_DRIVER", "sqlite"),
		DBDSN:              src.get("DB_DSN"),
		AuthHMACSecret:     src.get("AUTH_HMAC_SECRET"),
		TokenTTL:           ttl,
		EnableLocalAuth:    src.bool("ENABLE_LOCAL_AUTH", true),
		AdminEmail:         src.get("ADMIN_EMAIL"),
		AdminPassHash:      src.get("ADMIN_PASS_HASH"),
		CORSOriginsOnline:  src.csv("CORS_ORIGINS_ONLINE", "https://gyandarshak.in"),
		CORSOriginsOffline: src.csv("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://127.0.0.1:3000"),
		RedactAnswerKeys:   src.bool("REDACT_ANSWER_KEYS", false),
		LogLevel:           level,
		LogFormat:          format,

		EnableGoogleAuth:   src.bool("ENABLE_GOOGLE_AUTH", false),
		GoogleClientID:     src.get("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: src.get("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  src.or("GOOGLE_REDIRECT_URI", strings.TrimSuffix(pub, "/")+"/auth/google/callback"),
		GoogleAllowedHD:    src.get("GOOGLE_ALLOWED_HD"),
	}

	if cfg.AuthHMACSecret == "" {
		if mode == ModeOnline {
			return Config{}, errors.New("AUTH_HMAC_SECRET is required in online mode")
		}
		cfg.AuthHMACSecret = devSecret
	}
	if cfg.EnableGoogleAuth && (cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "") {
		return Config{}, errors.New("ENABLE_GOOGLE_AUTH needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	return cfg, nil
}

func (s source) or(k, def string) string {
	if v := s.get(k); v != "" {
		return v
	}
	return def
}

func (s source) bool(k string, def bool) bool {
	switch s.get(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func (s source) csv(k, def string) []string {
	v := s.or(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
