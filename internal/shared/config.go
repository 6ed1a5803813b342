package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	Gateway     string // mysql | backend
	MySQLDSN    string
	BackendURL  string
	BackendKey  string
	BackendRPS  int
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	DraftsPath  string // empty keeps drafts in memory
	JWTSecret   string
	JWTIssuer   string
	AMQPURL     string
	SessionIdle time.Duration

	Upload UploadConfig
	Wizard WizardConfig
}

type UploadConfig struct {
	Driver        string // s3 | local
	Dir           string
	PublicBaseURL string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKeyID string
	S3SecretKey   string
}

// WizardConfig is the tuning that may also come from the CONFIG_FILE overlay.
type WizardConfig struct {
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	GateInitialDelay time.Duration `yaml:"gate_initial_delay"`
	GateGraceWindow  time.Duration `yaml:"gate_grace_window"`
	Roles            []string      `yaml:"roles"`
	MaxImageWidth    int           `yaml:"max_image_width"`
	UploadWorkers    int           `yaml:"upload_workers"`
}

func Load() Config {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		Gateway:     strings.ToLower(env("GATEWAY", "mysql")),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/staylist?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		BackendURL:  env("BACKEND_URL", ""),
		BackendKey:  env("BACKEND_KEY", ""),
		BackendRPS:  atoi("BACKEND_RPS", 5),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,
		DraftsPath:  env("DRAFTS_PATH", ""),
		JWTSecret:   env("JWT_SECRET", ""),
		JWTIssuer:   env("JWT_ISSUER", ""),
		AMQPURL:     env("AMQP_URL", ""),
		SessionIdle: time.Duration(atoi("SESSION_IDLE_MINUTES", 120)) * time.Minute,
		Upload: UploadConfig{
			Driver:        strings.ToLower(env("UPLOAD_DRIVER", "local")),
			Dir:           env("UPLOAD_DIR", "media"),
			PublicBaseURL: env("PUBLIC_BASE_URL", "http://localhost:8080/media"),
			S3Bucket:      env("S3_BUCKET", ""),
			S3Region:      env("S3_REGION", "us-east-1"),
			S3Endpoint:    env("S3_ENDPOINT", ""),
			S3AccessKeyID: env("S3_ACCESS_KEY_ID", ""),
			S3SecretKey:   env("S3_SECRET_ACCESS_KEY", ""),
		},
		Wizard: DefaultWizardConfig(),
	}

	if p := os.Getenv("CONFIG_FILE"); p != "" {
		if err := c.Wizard.Overlay(p); err != nil {
			log.Warn().Err(err).Str("file", p).Msg("config overlay ignored")
		}
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	if c.Gateway == "backend" && c.BackendKey == "" {
		log.Warn().Msg("BACKEND_KEY is empty")
	}
	return c
}

func DefaultWizardConfig() WizardConfig {
	return WizardConfig{
		AutosaveInterval: 30 * time.Second,
		GateInitialDelay: time.Second,
		GateGraceWindow:  3 * time.Second,
		Roles:            []string{"property_owner", "owner", "admin"},
		MaxImageWidth:    1920,
		UploadWorkers:    4,
	}
}

// Overlay reads a YAML file and replaces only the keys it sets.
func (w *WizardConfig) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file WizardConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if file.AutosaveInterval > 0 {
		w.AutosaveInterval = file.AutosaveInterval
	}
	if file.GateInitialDelay > 0 {
		w.GateInitialDelay = file.GateInitialDelay
	}
	if file.GateGraceWindow > 0 {
		w.GateGraceWindow = file.GateGraceWindow
	}
	if len(file.Roles) > 0 {
		w.Roles = file.Roles
	}
	if file.MaxImageWidth > 0 {
		w.MaxImageWidth = file.MaxImageWidth
	}
	if file.UploadWorkers > 0 {
		w.UploadWorkers = file.UploadWorkers
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
