package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Storage   StorageConfig
	R2        R2Config
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type DatabaseConfig struct {
	Path string
}

// EngineConfig configures the downstream synthesis engine and the
// admission/retry policy applied against it.
type EngineConfig struct {
	BaseURL           string
	TimeoutSeconds    int
	MaxAttempts       int
	RetryDelaySeconds int
}

type StorageConfig struct {
	Dir            string
	MaxUploadBytes int64
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	JobsPerHour    int
	UploadsPerHour int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("JWT_SECRET")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("engine.base_url", "ENGINE_BASE_URL")
	_ = viper.BindEnv("engine.timeout", "ENGINE_TIMEOUT")
	_ = viper.BindEnv("engine.max_attempts", "ENGINE_MAX_ATTEMPTS")
	_ = viper.BindEnv("engine.retry_delay", "ENGINE_RETRY_DELAY")
	_ = viper.BindEnv("storage.dir", "STORAGE_DIR")
	_ = viper.BindEnv("storage.max_upload_bytes", "STORAGE_MAX_UPLOAD_BYTES")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("database.path", "data/voiceforge.db")

	// Downstream engine defaults. The engine processes one request at a
	// time; the timeout bounds a single dispatch attempt.
	viper.SetDefault("engine.base_url", "http://localhost:8100")
	viper.SetDefault("engine.timeout", 300)
	viper.SetDefault("engine.max_attempts", 3)
	viper.SetDefault("engine.retry_delay", 2)

	viper.SetDefault("storage.dir", "data/files")
	viper.SetDefault("storage.max_upload_bytes", 20*1024*1024)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.jobs_per_hour", 60)
	viper.SetDefault("ratelimit.uploads_per_hour", 50)
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Engine: EngineConfig{
			BaseURL:           viper.GetString("engine.base_url"),
			TimeoutSeconds:    viper.GetInt("engine.timeout"),
			MaxAttempts:       viper.GetInt("engine.max_attempts"),
			RetryDelaySeconds: viper.GetInt("engine.retry_delay"),
		},
		Storage: StorageConfig{
			Dir:            viper.GetString("storage.dir"),
			MaxUploadBytes: viper.GetInt64("storage.max_upload_bytes"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:    viper.GetInt("ratelimit.jobs_per_hour"),
			UploadsPerHour: viper.GetInt("ratelimit.uploads_per_hour"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
