package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	PublicBaseURL        string
	DatabaseDriver       string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAge           time.Duration

	JWTSecret  string
	SessionTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string

	Storage Storage

	UploadMaxBytes int64
	VoteQueueSize  int

	LogLevel  string
	LogFormat string
}

// Storage selects and configures the object bucket.
type Storage struct {
	Driver    string // local or sftp
	LocalDir  string
	PublicURL string

	SFTPHost     string
	SFTPPort     int
	SFTPUser     string
	SFTPPassword string
	SFTPKeyFile  string
	SFTPPath     string
}

func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests need not touch the process env.
func FromEnv(lookup func(string) string) (Config, error) {
	e := env{lookup: lookup}

	cfg := Config{
		HTTPAddr:             e.get("HTTP_ADDR", ":8080"),
		PublicBaseURL:        strings.TrimRight(e.get("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseDriver:       strings.ToLower(e.get("DATABASE_DRIVER", "postgres")),
		DatabaseURL:          e.require("DATABASE_URL"),
		CORSAllowCredentials: e.get("CORS_ALLOW_CREDENTIALS", "false") == "true",
		CORSMaxAge:           e.duration("CORS_MAX_AGE", 5*time.Minute),
		JWTSecret:            e.require("JWT_SECRET"),
		SessionTTL:           e.duration("SESSION_TTL", 7*24*time.Hour),
		GoogleClientID:       e.get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   e.get("GOOGLE_CLIENT_SECRET", ""),
		UploadMaxBytes:       int64(e.int("UPLOAD_MAX_BYTES", 10<<20)),
		VoteQueueSize:        e.int("VOTE_QUEUE_SIZE", 256),
		LogLevel:             strings.ToLower(e.get("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(e.get("LOG_FORMAT", "text")),
	}

	for _, o := range strings.Split(e.get("CORS_ALLOWED_ORIGINS", ""), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.Storage = Storage{
		Driver:       strings.ToLower(e.get("STORAGE_DRIVER", "local")),
		LocalDir:     e.get("STORAGE_LOCAL_DIR", "./data/objects"),
		PublicURL:    strings.TrimRight(e.get("STORAGE_PUBLIC_URL", cfg.PublicBaseURL+"/objects"), "/"),
		SFTPHost:     e.get("SFTP_HOST", ""),
		SFTPPort:     e.int("SFTP_PORT", 22),
		SFTPUser:     e.get("SFTP_USER", ""),
		SFTPPassword: e.get("SFTP_PASSWORD", ""),
		SFTPKeyFile:  e.get("SFTP_KEY_FILE", ""),
		SFTPPath:     e.get("SFTP_PATH", "objects"),
	}

	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(e.errs, "; "))
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("config: unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	switch cfg.Storage.Driver {
	case "local":
	case "sftp":
		if cfg.Storage.SFTPHost == "" {
			return Config{}, fmt.Errorf("config: SFTP_HOST required for sftp storage")
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in has credentials.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

type env struct {
	lookup func(string) string
	errs   []string
}

func (e *env) get(key, def string) string {
	v := strings.TrimSpace(e.lookup(key))
	if v == "" {
		return def
	}
	return v
}

func (e *env) require(key string) string {
	v := strings.TrimSpace(e.lookup(key))
	if v == "" {
		e.errs = append(e.errs, "missing env: "+key)
	}
	return v
}

func (e *env) int(key string, def int) int {
	v := e.get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.errs = append(e.errs, "invalid "+key)
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, "invalid "+key)
		return def
	}
	return d
}
