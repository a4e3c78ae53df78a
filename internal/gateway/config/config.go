package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	Env    string
	Store  StoreConfig
	Upload UploadConfig
	Schema SchemaCacheConfig
}

// StoreConfig picks the entry store backend: postgres when DatabaseURL is
// set, else sqlite when SQLitePath is set, else a JSON file.
type StoreConfig struct {
	DatabaseURL string
	SQLitePath  string
	FilePath    string
	CacheSize   int
}

type UploadConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SchemaCacheConfig struct {
	Size int
	TTL  time.Duration
}

func (c UploadConfig) CanUseS3() bool {
	return c.Enabled && c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	cfg := FromEnv(*port)
	return &cfg, nil
}

// FromEnv builds the configuration from the process environment. PORT wins
// over the flag value.
func FromEnv(port string) Config {
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		port = envPort
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return Config{
		Port: port,
		Env:  env,
		Store: StoreConfig{
			DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
			SQLitePath:  strings.TrimSpace(os.Getenv("SQLITE_PATH")),
			FilePath:    firstNonEmpty(strings.TrimSpace(os.Getenv("ENTRY_STORE_PATH")), "tmp/entries.json"),
			CacheSize:   envInt("ENTRY_CACHE_SIZE", 256),
		},
		Upload: loadUploadConfig(env),
		Schema: SchemaCacheConfig{
			Size: envInt("SCHEMA_CACHE_SIZE", 16),
			TTL:  envDuration("SCHEMA_CACHE_TTL", 30*time.Minute),
		},
	}
}

func loadUploadConfig(env string) UploadConfig {
	endpoint := resolveUploadEndpoint(env)
	return UploadConfig{
		Enabled:   isLocal(env) || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_BUCKET")), "nmrdeposit-uploads"),
		UseSSL:    resolveUploadUseSSL(env),
	}
}

func resolveUploadEndpoint(env string) string {
	if isLocal(env) {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("UPLOAD_S3_ENDPOINT"))
}

func resolveUploadUseSSL(env string) bool {
	if isLocal(env) {
		return false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("UPLOAD_S3_USE_SSL")))
	if err != nil {
		return true
	}
	return v
}

func isLocal(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "local")
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
