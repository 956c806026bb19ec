package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultSessionSecret = "default-secret-key-change-me"

type Config struct {
	Addr       string
	UploadsDir string

	// DBDriver selects the snapshot store: sqlite, mysql or postgres. Empty
	// keeps tasks and accounts in memory only.
	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RedisHost empty means sessions live in signed cookies.
	RedisHost string
	RedisPort string

	SessionSecret string
	GinMode       string
	SeedUsers     bool
	BcryptCost    int
	LogLevel      string
	LogFormat     string
}

// Load reads the environment. With ENV=dev a .env file in the working
// directory is applied first; variables already set take precedence.
func Load() *Config {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	return &Config{
		Addr:          getEnv("ADDR", ":8080"),
		UploadsDir:    getEnv("UPLOADS_DIR", "uploads"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "")),
		DBDSN:         getEnv("DB_DSN", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", ""),
		DBUser:        getEnv("DB_USER", "busybee"),
		DBPassword:    getEnv("DB_PASSWORD", "busybee"),
		DBName:        getEnv("DB_NAME", "busybee"),
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		GinMode:       getEnv("GIN_MODE", "debug"),
		SeedUsers:     getEnvBool("SEED_USERS", true),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
