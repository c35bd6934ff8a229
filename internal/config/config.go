package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	MongoURL            string        `mapstructure:"MONGO_URL"`
	MongoDatabase       string        `mapstructure:"MONGO_DATABASE"`
	JWTSigningKey       string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTTTL              time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	LogFile             string        `mapstructure:"LOG_FILE"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	PaymentKeyID        string        `mapstructure:"PAYMENT_KEY_ID"`
	PaymentKeySecret    string        `mapstructure:"PAYMENT_KEY_SECRET"`
	PaymentBaseURL      string        `mapstructure:"PAYMENT_BASE_URL"`
	PaymentMockFallback bool          `mapstructure:"PAYMENT_MOCK_FALLBACK"`
	IDVerifyDelay       time.Duration `mapstructure:"ID_VERIFY_DELAY"`
	DoctorCodeMap       string        `mapstructure:"DOCTOR_CODE_MAP"`
	DefaultDoctorCode   string        `mapstructure:"DEFAULT_DOCTOR_CODE"`
	LoginMaxAttempts    int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginLockout        time.Duration `mapstructure:"LOGIN_LOCKOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "MONGO_URL", "MONGO_DATABASE",
	"JWT_SIGNING_KEY", "JWT_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_FILE", "LOG_LEVEL",
	"PAYMENT_KEY_ID", "PAYMENT_KEY_SECRET", "PAYMENT_BASE_URL", "PAYMENT_MOCK_FALLBACK",
	"ID_VERIFY_DELAY", "DOCTOR_CODE_MAP", "DEFAULT_DOCTOR_CODE",
	"LOGIN_MAX_ATTEMPTS", "LOGIN_LOCKOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults. Credentials deliberately have none.
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MONGO_DATABASE", "healthhub")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAYMENT_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("PAYMENT_MOCK_FALLBACK", false)
	v.SetDefault("ID_VERIFY_DELAY", "1500ms")
	v.SetDefault("DEFAULT_DOCTOR_CODE", "DOC001")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT", "15m")

	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSigningKey == "" {
		log.Println("WARNING: JWT_SIGNING_KEY is not set; an ephemeral key will be generated.")
		log.Println("WARNING: sessions will not survive a restart. Do NOT run like this in production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PaymentConfigured reports whether gateway credentials are present.
func (c *Config) PaymentConfigured() bool {
	return c.PaymentKeyID != "" && c.PaymentKeySecret != ""
}

// DoctorCodes parses DOCTOR_CODE_MAP ("email=DOC001,email2=DOC002") into a
// lowercase-email keyed lookup table. Malformed pairs are skipped.
func (c *Config) DoctorCodes() map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(c.DoctorCodeMap, ",") {
		email, code, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		email = strings.ToLower(strings.TrimSpace(email))
		code = strings.TrimSpace(code)
		if email == "" || code == "" {
			continue
		}
		out[email] = code
	}
	return out
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without externally supplied secrets.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in production")
		}
		if !c.PaymentConfigured() {
			return fmt.Errorf("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required in production")
		}
	}
	// Mock orders are development only.
	if c.PaymentMockFallback && !c.IsDev() {
		return fmt.Errorf("PAYMENT_MOCK_FALLBACK is only allowed with ENV=development, got ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters, got %d", len(c.JWTSigningKey))
	}
	if (c.PaymentKeyID == "") != (c.PaymentKeySecret == "") {
		return fmt.Errorf("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET must be set together")
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", c.LoginMaxAttempts)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}
