package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	ImageHostCloudinary = "cloudinary"
	ImageHostLocal      = "local"
)

type Config struct {
	Env     string
	Port    int
	DBURL   string
	Storage string

	JWTUserSecret  string
	JWTAdminSecret string
	BcryptCost     int

	FrontendURLs []string

	ImageHost      string
	CloudName      string
	CloudAPIKey    string
	CloudAPISecret string
	CloudFolder    string
	ImageDir       string
	PublicBaseURL  string
	MaxUploadBytes int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	WorkerPort         int
	WorkerPollInterval time.Duration

	// CatalogCacheTTL enables the public course read cache when positive.
	CatalogCacheTTL time.Duration
}

// Load reads the environment, after merging a local .env file when one exists.
func Load() Config {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	return Config{
		Env:     getEnv("APP_ENV", "dev"),
		Port:    getEnvInt("PORT", 8080),
		DBURL:   buildDBURL(),
		Storage: strings.ToLower(getEnv("STORAGE", StoragePostgres)),

		JWTUserSecret:  os.Getenv("JWT_USER_SECRET"),
		JWTAdminSecret: os.Getenv("JWT_ADMIN_SECRET"),
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),

		FrontendURLs: splitList(getEnv("FRONTEND_URL", "http://localhost:5173")),

		ImageHost:      strings.ToLower(getEnv("IMAGE_HOST", ImageHostLocal)),
		CloudName:      os.Getenv("CLOUD_NAME"),
		CloudAPIKey:    os.Getenv("CLOUD_API_KEY"),
		CloudAPISecret: os.Getenv("CLOUD_API_SECRET"),
		CloudFolder:    getEnv("CLOUD_FOLDER", "CourseApp"),
		ImageDir:       getEnv("IMAGE_DIR", "./uploads"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 5)) << 20,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Course"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "Admin"),

		WorkerPort:         getEnvInt("WORKER_PORT", 8081),
		WorkerPollInterval: time.Duration(getEnvInt("WORKER_POLL_MS", 1000)) * time.Millisecond,

		CatalogCacheTTL: time.Duration(getEnvInt("CATALOG_CACHE_MS", 2000)) * time.Millisecond,
	}
}

// Validate reports every setting that would make the API unsafe or unable to start.
func (c Config) Validate() error {
	var errs []error

	if c.Env != "test" {
		if c.JWTUserSecret == "" {
			errs = append(errs, errors.New("JWT_USER_SECRET is required"))
		}
		if c.JWTAdminSecret == "" {
			errs = append(errs, errors.New("JWT_ADMIN_SECRET is required"))
		}
	}

	if c.JWTUserSecret != "" && c.JWTUserSecret == c.JWTAdminSecret {
		errs = append(errs, errors.New("JWT_USER_SECRET and JWT_ADMIN_SECRET must differ"))
	}

	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}

	switch c.Storage {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE %q", c.Storage))
	}

	switch c.ImageHost {
	case ImageHostLocal:
	case ImageHostCloudinary:
		if c.CloudName == "" || c.CloudAPIKey == "" || c.CloudAPISecret == "" {
			errs = append(errs, errors.New("CLOUD_NAME, CLOUD_API_KEY and CLOUD_API_SECRET are required for the cloudinary image host"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IMAGE_HOST %q", c.ImageHost))
	}

	return errors.Join(errs...)
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "coursehub")
	pass := getEnv("DB_PASSWORD", "coursehub")
	name := getEnv("DB_NAME", "coursehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
