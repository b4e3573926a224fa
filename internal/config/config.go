package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	MySQLDSN      string
	CacheBackend  string // "memory" or "redis"
	RedisAddr     string
	ProductTTL    time.Duration
	SweepInterval time.Duration
	ScanLogQueue  int
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:      getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/scanstock?parseTime=true"),
		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		ProductTTL:    getDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		SweepInterval: getDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		ScanLogQueue:  getInt("SCANLOG_QUEUE_SIZE", 1024),
	}

	log.Printf("config: addr=%s cache=%s ttl=%s queue=%d",
		cfg.HTTPAddr, cfg.CacheBackend, cfg.ProductTTL, cfg.ScanLogQueue)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
