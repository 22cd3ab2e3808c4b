package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	minBcryptCost = 10
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"5000"`
	AppEnv         string        `env:"APP_ENV" envDefault:"production"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"edu_consult"`
	DatabaseURL   string `env:"DATABASE_URL"`

	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"edu-consult"`
	JWTAccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`

	BcryptCost  int `env:"BCRYPT_COST" envDefault:"10"`
	HashWorkers int `env:"HASH_WORKERS"`

	OTPLength     int           `env:"OTP_LENGTH" envDefault:"6"`
	OTPTTL        time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPRateWindow time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`
	OTPRateMax    int           `env:"OTP_RATE_MAX" envDefault:"3"`

	// ForgotPasswordHideUnknown responde 200 aunque el email no exista.
	ForgotPasswordHideUnknown bool `env:"FORGOT_PASSWORD_HIDE_UNKNOWN" envDefault:"false"`

	CookieTransport bool   `env:"COOKIE_TRANSPORT" envDefault:"true"`
	CookieSecure    bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain    string `env:"COOKIE_DOMAIN"`

	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"30"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost               string        `env:"SMTP_HOST"`
	SMTPPort               int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser               string        `env:"SMTP_USER"`
	SMTPPass               string        `env:"SMTP_PASS"`
	SMTPFrom               string        `env:"SMTP_FROM"`
	SMTPFromName           string        `env:"SMTP_FROM_NAME"`
	SMTPUseTLS             bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	SMTPBreakerMaxFailures int           `env:"SMTP_BREAKER_MAX_FAILURES" envDefault:"5"`
	SMTPBreakerTimeout     time.Duration `env:"SMTP_BREAKER_TIMEOUT" envDefault:"30s"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que no permiten arrancar el servicio.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET must not be empty")
	}
	if c.BcryptCost < minBcryptCost {
		return fmt.Errorf("config: BCRYPT_COST must be >= %d, got %d", minBcryptCost, c.BcryptCost)
	}
	if c.OTPLength < 1 {
		return fmt.Errorf("config: OTP_LENGTH must be positive, got %d", c.OTPLength)
	}
	switch c.StoreDriver {
	case StoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return errors.New("config: MONGO_URI is required for the mongo store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}
