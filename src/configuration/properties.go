package configuration

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type (
	Properties struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
		StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`

		Auth   AuthProperties       `envPrefix:"AUTH_"`
		Mongo  MongoProperties      `envPrefix:"MONGO_"`
		Redis  RedisProperties      `envPrefix:"REDIS_"`
		S3     S3Properties         `envPrefix:"S3_"`
		Server HttpServerProperties `envPrefix:"HTTP_"`
	}

	AuthProperties struct {
		JWTSecret string        `env:"JWT_SECRET"`
		Issuer    string        `env:"ISSUER" envDefault:"catalogserv"`
		TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
		StateTTL  time.Duration `env:"STATE_TTL" envDefault:"10m"`

		// Base URL the providers redirect back to, e.g. https://api.example.com.
		CallbackURL string `env:"CALLBACK_URL" envDefault:"http://localhost:3030"`

		GoogleID       string `env:"GOOGLE_ID"`
		GoogleSecret   string `env:"GOOGLE_SECRET"`
		GitHubID       string `env:"GITHUB_ID"`
		GitHubSecret   string `env:"GITHUB_SECRET"`
		FacebookID     string `env:"FACEBOOK_ID"`
		FacebookSecret string `env:"FACEBOOK_SECRET"`
	}

	HttpServerProperties struct {
		Name string `env:"NAME" envDefault:"catalogserv"`
		Port string `env:"PORT" envDefault:"3030"`
		// Whole request, body included. Must cover a MaxUpload image on a slow link.
		ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
		CorsOrigins       []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		Pprof             bool          `env:"PPROF" envDefault:"false"`
		// Where provider logins land with ?accessToken=.
		FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
		// Upper bound for multipart image uploads, in bytes.
		MaxUpload int64 `env:"MAX_UPLOAD" envDefault:"10485760"`
	}

	MongoProperties struct {
		URL          string        `env:"URL" envDefault:"mongodb://localhost:27017"`
		Database     string        `env:"DATABASE" envDefault:"catalog"`
		Transactions bool          `env:"TRANSACTIONS" envDefault:"true"`
		Timeout      time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	RedisProperties struct {
		Addr     string `env:"ADDR"`
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB" envDefault:"0"`
	}

	S3Properties struct {
		Host      string `env:"HOST" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"catalog"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
		PublicURL string `env:"PUBLIC_URL"`
	}
)

// ReadProperties parses the environment into a Properties value. The result is
// treated as read-only by every component it is handed to.
func ReadProperties() (*Properties, error) {
	config := &Properties{}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Properties) Validate() error {
	if p.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if len(p.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes")
	}
	switch p.StoreDriver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", p.StoreDriver)
	}
	if p.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	return nil
}
