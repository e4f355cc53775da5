package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cart      CartConfig
	Consent   ConsentConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type CartConfig struct {
	CookieName    string
	CookieMaxAge  int // in days
	MaxCookieSize int // in bytes
}

// ConsentConfig describes the cookie consent banner. Bumping PolicyVersion
// asks every visitor to decide again.
type ConsentConfig struct {
	CookieName    string
	CookieMaxAge  int // in days
	PolicyVersion string
}

// RateLimitConfig holds the two fixed windows: one for auth routes, one for
// everything else.
type RateLimitConfig struct {
	GeneralRequests int
	GeneralWindow   time.Duration
	AuthRequests    int
	AuthWindow      time.Duration
}

type CacheConfig struct {
	ProductTTL time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// AccessTTL returns the access token lifetime
func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessExpiry) * time.Minute
}

// RefreshTTL returns the refresh token lifetime
func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpiry) * 24 * time.Hour
}

// CookieTTL returns the guest cart cookie lifetime
func (c CartConfig) CookieTTL() time.Duration {
	return time.Duration(c.CookieMaxAge) * 24 * time.Hour
}

// CookieTTL returns the consent cookie lifetime
func (c ConsentConfig) CookieTTL() time.Duration {
	return time.Duration(c.CookieMaxAge) * 24 * time.Hour
}

func Load() *Config {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 30)
	v.SetDefault("CART_COOKIE_NAME", "guest_cart")
	v.SetDefault("CART_COOKIE_MAX_AGE", 30)
	v.SetDefault("CART_COOKIE_MAX_SIZE", 4096)
	v.SetDefault("CONSENT_COOKIE_NAME", "cookie_consent")
	v.SetDefault("CONSENT_COOKIE_MAX_AGE", 365)
	v.SetDefault("CONSENT_POLICY_VERSION", "1")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_AUTH_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "15m")
	v.SetDefault("CACHE_PRODUCT_TTL", "30s")
	v.SetDefault("RABBITMQ_EXCHANGE", "storefront.events")

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Cart: CartConfig{
			CookieName:    v.GetString("CART_COOKIE_NAME"),
			CookieMaxAge:  v.GetInt("CART_COOKIE_MAX_AGE"),
			MaxCookieSize: v.GetInt("CART_COOKIE_MAX_SIZE"),
		},
		Consent: ConsentConfig{
			CookieName:    v.GetString("CONSENT_COOKIE_NAME"),
			CookieMaxAge:  v.GetInt("CONSENT_COOKIE_MAX_AGE"),
			PolicyVersion: v.GetString("CONSENT_POLICY_VERSION"),
		},
		RateLimit: RateLimitConfig{
			GeneralRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			GeneralWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
			AuthRequests:    v.GetInt("RATE_LIMIT_AUTH_REQUESTS"),
			AuthWindow:      v.GetDuration("RATE_LIMIT_AUTH_WINDOW"),
		},
		Cache: CacheConfig{
			ProductTTL: v.GetDuration("CACHE_PRODUCT_TTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
