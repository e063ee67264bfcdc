package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=fruteria port=5432 sslmode=disable"

type Config struct {
	AppEnv             string
	HTTPPort           string
	DatabaseDSN        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	JWTSecret          string
	JWTExpirationHours int
	CORSOrigins        string
	RedisURL           string        // vacío = sin caché de estadísticas
	StatsCacheTTL      time.Duration // TTL del dashboard en redis
}

// Load lee la configuración del entorno. Un archivo .env en el directorio de
// trabajo es opcional y nunca pisa variables ya definidas.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "3001"),
		DatabaseDSN:        getEnv("DATABASE_DSN", defaultDSN),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpirationHours: getEnvInt("JWT_EXPIRATION_HOURS", 24),
		CORSOrigins:        getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		RedisURL:           getEnv("REDIS_URL", ""),
		StatsCacheTTL:      time.Duration(getEnvInt("STATS_CACHE_TTL_SECONDS", 30)) * time.Second,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET no está definido")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET debe tener al menos 32 caracteres")
	}
	if cfg.JWTExpirationHours <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS debe ser mayor a 0")
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Warn().Msg("DATABASE_DSN usa el valor por defecto, defina su propia conexión para producción")
	}
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL no definido, las estadísticas se calculan sin caché")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("valor entero inválido, se usa el valor por defecto")
		return def
	}
	return n
}
