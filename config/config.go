// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first (if present) with
// godotenv; real environment variables always win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Upload    UploadConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	LogLevel  string
}

type ServerConfig struct {
	Host string
	Port int
	// SecureCookies marks the auth cookie Secure; enable behind HTTPS.
	SecureCookies bool
}

// DatabaseConfig selects the conversation store. Mongo is the production
// document store; SQLite is the single-file option for local runs.
type DatabaseConfig struct {
	Driver       string
	MongoURL     string
	MongoDB      string
	SQLitePath   string
	MongoRetries int
}

// RedisConfig enables the presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type UploadConfig struct {
	Dir     string
	MaxSize int64 // bytes
}

type WebSocketConfig struct {
	PongWait time.Duration
}

type RateLimitConfig struct {
	Messages int           // messages allowed per window, 0 disables
	Window   time.Duration
	Cooldown time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("SERVER_PORT", 5000)
	if err != nil {
		return nil, err
	}

	jwtDays, err := getInt("JWT_EXPIRY_DAYS", 7)
	if err != nil {
		return nil, err
	}

	maxSize, err := strconv.ParseInt(getEnv("UPLOAD_MAX_SIZE", "10485760"), 10, 64) // 10MB
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	presenceTTL, err := getInt("PRESENCE_TTL_SECONDS", 120)
	if err != nil {
		return nil, err
	}

	pongWait, err := getInt("WS_PONG_WAIT_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if pongWait < 2 {
		return nil, fmt.Errorf("WS_PONG_WAIT_SECONDS must be at least 2")
	}

	msgLimit, err := getInt("MESSAGE_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}

	mongoRetries, err := getInt("MONGODB_MAX_RETRY", 3)
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", DriverMongo))
	mongoURL := getEnv("MONGODB_URL", "")
	switch driver {
	case DriverMongo:
		if mongoURL == "" {
			return nil, fmt.Errorf("MONGODB_URL is required when DATABASE_DRIVER=%s", DriverMongo)
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (want %s or %s)", driver, DriverMongo, DriverSQLite)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          port,
			SecureCookies: strings.EqualFold(getEnv("COOKIE_SECURE", "false"), "true"),
		},
		Database: DatabaseConfig{
			Driver:       driver,
			MongoURL:     mongoURL,
			MongoDB:      getEnv("MONGODB_DATABASE", "chatify"),
			SQLitePath:   getEnv("DATABASE_PATH", "./data/chatify.db"),
			MongoRetries: mongoRetries,
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          redisDB,
			PresenceTTL: time.Duration(presenceTTL) * time.Second,
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Expiry: time.Duration(jwtDays) * 24 * time.Hour,
		},
		Upload: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", "./data/uploads"),
			MaxSize: maxSize,
		},
		WebSocket: WebSocketConfig{
			PongWait: time.Duration(pongWait) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Messages: msgLimit,
			Window:   5 * time.Second,
			Cooldown: 15 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
