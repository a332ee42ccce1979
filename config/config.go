package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"wanderplan/llm"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	LLM      llm.Settings
	LLMMock  bool
	CacheTTL time.Duration

	MapAPIKey string
	MapSDKURL string

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	StoreDriver string // postgres, sqlite or mongo
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string

	ConfigSecret    string
	PublicBaseURL   string
	PDFFontPath     string
	DefaultTimezone string

	GenerateRatePerMin int
}

// Load reads .env when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv()
}

// FromEnv builds the config from the current environment only.
func FromEnv() *Config {
	c := &Config{
		Port: port(os.Getenv("PORT")),
		LLM: llm.Settings{
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_API_BASE_URL"),
			Model:       getenvOrDefault("LLM_MODEL", llm.DefaultModel),
			Temperature: getenvFloat("LLM_TEMPERATURE", llm.DefaultTemperature),
			MaxTokens:   getenvInt("LLM_MAX_TOKENS", llm.DefaultMaxTokens),
		},
		LLMMock:  getenvBool("LLM_MOCK"),
		CacheTTL: getenvDuration("LLM_CACHE_TTL", 30*time.Minute),

		MapAPIKey: os.Getenv("MAP_API_KEY"),
		MapSDKURL: os.Getenv("MAP_SDK_URL"),

		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseJWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),

		StoreDriver: getenvOrDefault("STORE_DRIVER", "sqlite"),
		DatabaseURL: getenvOrDefault("DATABASE_URL", "file:wanderplan.db?_pragma=foreign_keys(1)"),
		MongoURI:    getenvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getenvOrDefault("MONGO_DB", "wanderplan"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ConfigSecret:    os.Getenv("CONFIG_SECRET"),
		PublicBaseURL:   strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		PDFFontPath:     os.Getenv("PDF_FONT_PATH"),
		DefaultTimezone: getenvOrDefault("DEFAULT_TIMEZONE", "Asia/Shanghai"),

		GenerateRatePerMin: getenvInt("GENERATE_RATE_PER_MIN", 5),
	}
	return c
}

func port(p string) string {
	if p == "" {
		return ":8080"
	}
	if p[0] != ':' {
		return ":" + p
	}
	return p
}

// getenvOrDefault returns the environment variable value if set, otherwise returns def
func getenvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("⚠️ %s=%q is not an integer; using %d", key, v, def)
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("⚠️ %s=%q is not a number; using %v", key, v, def)
		return def
	}
	return f
}

func getenvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ %s=%q is not a duration; using %s", key, v, def)
		return def
	}
	return d
}
