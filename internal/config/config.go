package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	Port               string
	DBPath             string
	JustTCGAPIKey      string
	MaxPages           int           // dev-mode page cap for the fetcher; 0 = default
	PageDelay          time.Duration // inter-page delay; 0 = default
	SnapshotHour       int
	CORSAllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./riftbound.db"),
		JustTCGAPIKey:      os.Getenv("JUSTTCG_API_KEY"),
		MaxPages:           getEnvInt("JUSTTCG_MAX_PAGES", 0),
		PageDelay:          time.Duration(getEnvInt("JUSTTCG_PAGE_DELAY_MS", 0)) * time.Millisecond,
		SnapshotHour:       getEnvInt("SNAPSHOT_HOUR", 23),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
