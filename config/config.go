// config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// --- Storage ---
	StoreBackend string `envconfig:"STORE_BACKEND" default:"mongo"`
	MongoURI     string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/?replicaSet=rs0"`
	DBName       string `envconfig:"DB_NAME" default:"referral"`

	// --- Auth ---
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"168h"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`

	// --- Redis (reset tokens) ---
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Mail ---
	SMTPHost  string `envconfig:"SMTP_HOST"`
	SMTPPort  int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser  string `envconfig:"SMTP_USER"`
	SMTPPass  string `envconfig:"SMTP_PASS"`
	FromEmail string `envconfig:"FROM_EMAIL" default:"noreply@referral.local"`

	// --- HTTP ---
	ClientURL          string `envconfig:"CLIENT_URL" default:"http://localhost:3000"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// --- Engine ---
	PurchaseTimeout     time.Duration `envconfig:"PURCHASE_TIMEOUT" default:"10s"`
	ExpirySweepInterval time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"1h"`
}

// IsDevelopment reports whether internal error details may be returned to
// clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS. An empty list means the
// defaults in middleware apply.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.StoreBackend != StoreMongo && c.StoreBackend != StoreMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreBackend)
	}
	if c.StoreBackend == StoreMongo && c.MongoURI == "" {
		return fmt.Errorf("MONGODB_URI is required for the mongo store")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL and RESET_TOKEN_TTL must be > 0")
	}
	if c.PurchaseTimeout <= 0 {
		return fmt.Errorf("PURCHASE_TIMEOUT must be > 0")
	}
	if c.ExpirySweepInterval < time.Minute {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must be at least 1m")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using process environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
