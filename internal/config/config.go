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
)

// ストアバックエンド
const (
	StoreBackendPostgres  = "postgres"
	StoreBackendRedis     = "redis"
	StoreBackendFirestore = "firestore"
	StoreBackendMemory    = "memory"
)

// 認証基盤
const (
	IdentityProviderFirebase = "firebase"
	IdentityProviderDev      = "dev"
)

// 画像ストレージ
const (
	BlobProviderGCS    = "gcs"
	BlobProviderMemory = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort  string
	APIBasePath string
	LogLevel    string

	// Entity Store
	StoreBackend        string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	FirestoreCollection string

	// Google Cloud
	GCPProjectID          string
	GoogleCredentialsFile string

	// Identity
	IdentityProvider string
	DevJWTSecret     string
	DevTokenTTL      time.Duration
	AnonKey          string

	// Images
	BlobProvider  string
	ImageBucket   string
	ImageMaxBytes int64
	ImageURLTTL   time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitUpload  int

	// Mail
	SendGridAPIKey string
	MailFrom       string

	// Checkout
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	SeedDemoProducts    bool
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在する場合は先に読み込むが、設定済みの環境変数は上書きしない。
// 選択したバックエンドに必要な環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:            getEnvString("SERVER_PORT", "8080"),
		APIBasePath:           getEnvString("API_BASE_PATH", "/api"),
		LogLevel:              getEnvString("LOG_LEVEL", "info"),
		StoreBackend:          strings.ToLower(getEnvString("STORE_BACKEND", StoreBackendPostgres)),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		FirestoreCollection:   getEnvString("FIRESTORE_COLLECTION", "kv_store"),
		GCPProjectID:          os.Getenv("GCP_PROJECT_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		IdentityProvider:      strings.ToLower(getEnvString("IDENTITY_PROVIDER", IdentityProviderFirebase)),
		DevJWTSecret:          os.Getenv("DEV_JWT_SECRET"),
		DevTokenTTL:           getEnvDuration("DEV_TOKEN_TTL", 24*time.Hour),
		AnonKey:               os.Getenv("ANON_KEY"),
		BlobProvider:          strings.ToLower(getEnvString("BLOB_PROVIDER", BlobProviderGCS)),
		ImageBucket:           os.Getenv("IMAGE_BUCKET"),
		ImageMaxBytes:         getEnvInt64("IMAGE_MAX_BYTES", 5242880),
		ImageURLTTL:           getEnvDuration("IMAGE_URL_TTL", 365*24*time.Hour),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitGeneral:      getEnvInt("RATE_LIMIT_GENERAL", 120),
		RateLimitUpload:       getEnvInt("RATE_LIMIT_UPLOAD", 10),
		SendGridAPIKey:        os.Getenv("SENDGRID_API_KEY"),
		MailFrom:              getEnvString("MAIL_FROM", "no-reply@ecofinds.app"),
		ReconcileInterval:     getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileStaleAfter:   getEnvDuration("RECONCILE_STALE_AFTER", 5*time.Minute),
		SeedDemoProducts:      getEnvBool("SEED_DEMO_PRODUCTS", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は選択されたバックエンドごとの必須環境変数を検査する。
func (c *Config) validate() error {
	var missing []string
	require := func(key, value string) {
		if value == "" {
			missing = append(missing, key)
		}
	}

	switch c.StoreBackend {
	case StoreBackendPostgres:
		require("DATABASE_URL", c.DatabaseURL)
	case StoreBackendRedis:
		require("REDIS_ADDR", c.RedisAddr)
	case StoreBackendFirestore:
		require("GCP_PROJECT_ID", c.GCPProjectID)
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND: %q", c.StoreBackend)
	}

	switch c.IdentityProvider {
	case IdentityProviderFirebase:
		require("GCP_PROJECT_ID", c.GCPProjectID)
	case IdentityProviderDev:
		require("DEV_JWT_SECRET", c.DevJWTSecret)
	default:
		return fmt.Errorf("unsupported IDENTITY_PROVIDER: %q", c.IdentityProvider)
	}

	switch c.BlobProvider {
	case BlobProviderGCS:
		require("IMAGE_BUCKET", c.ImageBucket)
		require("GCP_PROJECT_ID", c.GCPProjectID)
	case BlobProviderMemory:
	default:
		return fmt.Errorf("unsupported BLOB_PROVIDER: %q", c.BlobProvider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", dedupe(missing))
	}
	if c.ImageMaxBytes <= 0 {
		return fmt.Errorf("IMAGE_MAX_BYTES must be positive: %d", c.ImageMaxBytes)
	}
	return nil
}

// RequiresDatabase はPostgreSQL接続が必要な構成かどうかを返す。
func (c *Config) RequiresDatabase() bool {
	return c.StoreBackend == StoreBackendPostgres
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
