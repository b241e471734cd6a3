package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration assembled from .env and the environment.
type Config struct {
	Port        string
	CORSOrigins []string
	JWT         JWTConfig
	Auth        AuthConfig
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
	Expiry    time.Duration
}

type AuthConfig struct {
	MaxLoginAttempts int
	LockoutWindow    time.Duration
}

// Load binds environment variables onto viper keys, applies defaults and
// returns the settings main needs directly. Packages that read viper on their
// own (database, auth hashing) see the same bindings.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"server.port": "PORT",

		"database.driver":            "DATABASE_DRIVER",
		"database.url":               "DATABASE_URL",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.user":              "DATABASE_USER",
		"database.password":          "DATABASE_PASSWORD",
		"database.name":              "DATABASE_NAME",
		"database.ssl_mode":          "DATABASE_SSL_MODE",
		"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
		"database.migrate":           "DATABASE_MIGRATE",

		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		"jwt.secret_key":   "JWT_SECRET_KEY",
		"jwt.issuer":       "JWT_ISSUER",
		"jwt.expiry_hours": "JWT_EXPIRY_HOURS",

		"argon2.time":        "ARGON2_TIME",
		"argon2.memory":      "ARGON2_MEMORY",
		"argon2.threads":     "ARGON2_THREADS",
		"argon2.key_length":  "ARGON2_KEY_LENGTH",
		"argon2.salt_length": "ARGON2_SALT_LENGTH",

		"auth.max_login_attempts": "AUTH_MAX_LOGIN_ATTEMPTS",
		"auth.lockout_window":     "AUTH_LOCKOUT_WINDOW",

		"cors.allowed_origins": "CORS_ALLOWED_ORIGINS",
	}
	for key, env := range bindings {
		viper.BindEnv(key, env)
	}

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using environment and defaults: %v", err)
	}

	if viper.GetString("jwt.secret_key") == "" {
		log.Printf("[CONFIG] JWT_SECRET_KEY is not set; tokens cannot be issued or verified")
	}

	return &Config{
		Port:        viper.GetString("server.port"),
		CORSOrigins: parseCSV(viper.GetString("cors.allowed_origins")),
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
			Issuer:    viper.GetString("jwt.issuer"),
			Expiry:    time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour,
		},
		Auth: AuthConfig{
			MaxLoginAttempts: viper.GetInt("auth.max_login_attempts"),
			LockoutWindow:    viper.GetDuration("auth.lockout_window"),
		},
	}
}

// SetDefaults registers every default value. Tests call it directly.
func SetDefaults() {
	viper.SetDefault("server.port", "8080")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "creditbook")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrate", true)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.issuer", "creditbook")
	viper.SetDefault("jwt.expiry_hours", 1)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("auth.max_login_attempts", 5)
	viper.SetDefault("auth.lockout_window", 15*time.Minute)

	viper.SetDefault("cors.allowed_origins", "*")
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
