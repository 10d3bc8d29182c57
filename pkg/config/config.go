package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Token store backends.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type Config struct {
	Env string

	API      APIConfig
	Paging   PagingConfig
	Log      LogConfig
	Token    TokenConfig
	Redis    RedisConfig
	Images   ImageConfig
	Export   ExportConfig
	Stub     StubConfig
	Metrics  MetricsConfig
	Location *time.Location
}

// APIConfig points the client at the remote pass-request API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PagingConfig controls list page sizes.
type PagingConfig struct {
	PageSize int
}

type LogConfig struct {
	Level  string
	Format string
}

// TokenConfig selects where the bearer token is persisted.
type TokenConfig struct {
	Store    string
	Dir      string
	File     string
	RedisKey string
	RedisTTL time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ImageConfig bounds attachment compression.
type ImageConfig struct {
	MaxDimension int
	MaxBytes     int
	StartQuality int
	QualityStep  int
	MinQuality   int
}

// ExportConfig configures report exports.
type ExportConfig struct {
	Dir string
}

// StubConfig configures the local stub API server.
type StubConfig struct {
	Port           int
	JWTSecret      string
	JWTExpiration  time.Duration
	AllowedOrigins []string
}

// MetricsConfig exposes client metrics over HTTP when Addr is set.
type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("HTTP_TIMEOUT"), 0),
	}

	pageSize := v.GetInt("PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 10
	}
	cfg.Paging = PagingConfig{PageSize: pageSize}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Token = TokenConfig{
		Store:    strings.ToLower(v.GetString("TOKEN_STORE")),
		Dir:      expandHome(v.GetString("TOKEN_DIR")),
		File:     v.GetString("TOKEN_FILE"),
		RedisKey: v.GetString("TOKEN_REDIS_KEY"),
		RedisTTL: parseDuration(v.GetString("TOKEN_REDIS_TTL"), 0),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Images = ImageConfig{
		MaxDimension: v.GetInt("IMAGE_MAX_DIMENSION"),
		MaxBytes:     v.GetInt("IMAGE_MAX_BYTES"),
		StartQuality: v.GetInt("IMAGE_START_QUALITY"),
		QualityStep:  v.GetInt("IMAGE_QUALITY_STEP"),
		MinQuality:   v.GetInt("IMAGE_MIN_QUALITY"),
	}

	cfg.Export = ExportConfig{Dir: v.GetString("EXPORT_DIR")}

	cfg.Stub = StubConfig{
		Port:           v.GetInt("STUB_PORT"),
		JWTSecret:      v.GetString("STUB_JWT_SECRET"),
		JWTExpiration:  parseDuration(v.GetString("STUB_JWT_EXPIRATION"), 24*time.Hour),
		AllowedOrigins: splitAndTrim(v.GetString("STUB_ALLOWED_ORIGINS")),
	}

	cfg.Metrics = MetricsConfig{Addr: v.GetString("METRICS_ADDR")}

	cfg.Location = loadLocation(v.GetString("TIMEZONE"))

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("HTTP_TIMEOUT", "")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("TIMEZONE", "Local")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("TOKEN_STORE", TokenStoreFile)
	v.SetDefault("TOKEN_DIR", "~/.passctl")
	v.SetDefault("TOKEN_FILE", "token")
	v.SetDefault("TOKEN_REDIS_KEY", "passctl:token")
	v.SetDefault("TOKEN_REDIS_TTL", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("IMAGE_MAX_DIMENSION", 800)
	v.SetDefault("IMAGE_MAX_BYTES", 500*1024)
	v.SetDefault("IMAGE_START_QUALITY", 30)
	v.SetDefault("IMAGE_QUALITY_STEP", 5)
	v.SetDefault("IMAGE_MIN_QUALITY", 5)

	v.SetDefault("EXPORT_DIR", "./exports")

	v.SetDefault("STUB_PORT", 8080)
	v.SetDefault("STUB_JWT_SECRET", "dev_stub_secret")
	v.SetDefault("STUB_JWT_EXPIRATION", "24h")
	v.SetDefault("STUB_ALLOWED_ORIGINS", "")

	v.SetDefault("METRICS_ADDR", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func loadLocation(name string) *time.Location {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return strings.TrimPrefix(path, "~/")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
