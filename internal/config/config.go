// Package config loads the server configuration from the environment once at
// startup. The resulting *Config is treated as immutable and handed to the
// components that need it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth carrier modes.
const (
	CarrierBearer = "bearer"
	CarrierCookie = "cookie"
)

// MinSecretKeyLength is the minimum accepted HMAC secret size in bytes.
const MinSecretKeyLength = 32

// Config holds runtime settings for the API server.
type Config struct {
	// HTTP
	Port       string
	TrustProxy bool // take the client key from X-Forwarded-For

	// Tokens
	SecretKey      string
	AccessTokenTTL time.Duration
	AuthCarrier    string // bearer or cookie
	CookieSecure   bool

	// Storage
	DBPath      string // sqlite file, used when DatabaseURL is empty
	DatabaseURL string // PostgreSQL DSN
	DBMaxConns  int

	// Rate limiting
	RedisURL          string // shared counters; in-memory when empty
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Argon2id parameters
	Argon2Time      uint32
	Argon2MemoryKiB uint32
	Argon2Threads   uint8

	// Logging
	LogLevel  string
	LogFormat string

	// First-run account, created only while the store has no users
	AdminUser     string
	AdminPassword string
}

// Load reads .env (if present) and the process environment, then validates
// the result. Values that fail to parse are reported rather than replaced by
// their defaults.
func Load() (*Config, error) {
	loadEnvFile()

	var env envReader
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		TrustProxy: env.asBool("TRUST_PROXY", false),

		SecretKey:      os.Getenv("SECRET_KEY"),
		AccessTokenTTL: time.Duration(env.asInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		AuthCarrier:    strings.ToLower(getEnv("AUTH_CARRIER", CarrierBearer)),
		CookieSecure:   env.asBool("COOKIE_SECURE", false),

		DBPath:      getEnv("DB_PATH", "expenses.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  env.asInt("DB_MAX_CONNS", 5),

		RedisURL:          os.Getenv("REDIS_URL"),
		RateLimitRequests: env.asInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   env.asDuration("RATE_LIMIT_WINDOW", time.Minute),

		Argon2Time:      uint32(env.asUint("ARGON2_TIME", 3, 32)),
		Argon2MemoryKiB: uint32(env.asUint("ARGON2_MEMORY_KIB", 64*1024, 32)),
		Argon2Threads:   uint8(env.asUint("ARGON2_THREADS", 4, 8)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AdminUser:     os.Getenv("ADMIN_USER"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}
	_ = godotenv.Load(filepath.Join(parent, ".env"))
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if len(c.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes", MinSecretKeyLength)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.AuthCarrier != CarrierBearer && c.AuthCarrier != CarrierCookie {
		return fmt.Errorf("AUTH_CARRIER must be %q or %q, got %q", CarrierBearer, CarrierCookie, c.AuthCarrier)
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		return fmt.Errorf("either DATABASE_URL or DB_PATH must be set")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Argon2Time == 0 || c.Argon2MemoryKiB == 0 || c.Argon2Threads == 0 {
		return fmt.Errorf("argon2 parameters must be positive")
	}
	return nil
}

// ListenAddr returns the address for http.Server.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// envReader parses typed environment values and collects every parse
// failure so Load can report them together.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: expected %s", key, value, want))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) asInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		e.fail(key, valueStr, "an integer")
		return defaultValue
	}
	return value
}

// asUint parses an unsigned value that must fit in bitSize bits.
func (e *envReader) asUint(key string, defaultValue uint64, bitSize int) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, bitSize)
	if err != nil {
		e.fail(key, valueStr, fmt.Sprintf("an unsigned %d-bit integer", bitSize))
		return defaultValue
	}
	return value
}

func (e *envReader) asBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		e.fail(key, valueStr, "a boolean")
		return defaultValue
	}
	return value
}

// asDuration accepts Go durations ("90s") or bare seconds ("60").
func (e *envReader) asDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	e.fail(key, valueStr, "a duration")
	return defaultValue
}
