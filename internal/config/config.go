package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret        string
		TokenTTLMinutes  int
		AllowAdminSignup bool
	}
	Fines struct {
		RatePerDay float64
	}
	Borrow struct {
		DefaultDays int
		MaxDays     int
	}
	Overdue struct {
		Interval time.Duration
	}
	Storage struct {
		Driver        string
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		PublicBaseURL string
		LocalDir      string
	}
	AWS struct {
		Profile string
	}
	Events struct {
		AMQPURL  string
		Exchange string
	}
	CORS struct {
		Origins []string
	}
	Log struct {
		Level  string
		Format string
	}
}

// TokenTTL is the lifetime of issued access tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Load reads configuration from environment variables and optional config files.
// Variables already present in the environment win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LIBRARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.CORS.Origins = splitList(v.GetStringSlice("cors.origins"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("database.path", "data/library.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 24*60)
	v.SetDefault("auth.allowadminsignup", false)
	v.SetDefault("fines.rateperday", 5.0)
	v.SetDefault("borrow.defaultdays", 14)
	v.SetDefault("borrow.maxdays", 30)
	v.SetDefault("overdue.interval", time.Hour)
	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "library")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.localdir", "data/uploads")
	v.SetDefault("aws.profile", "")
	v.SetDefault("events.amqpurl", "")
	v.SetDefault("events.exchange", "library.events")
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports the first setting that would keep the server from starting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Auth.JWTSecret) == "":
		return errors.New("auth jwt secret is required (LIBRARY_AUTH_JWTSECRET)")
	case c.Auth.TokenTTLMinutes <= 0:
		return errors.New("auth token ttl must be positive")
	case c.Fines.RatePerDay <= 0:
		return errors.New("fine rate per day must be positive")
	case c.Borrow.MaxDays <= 0:
		return errors.New("borrow max days must be positive")
	case c.Borrow.DefaultDays <= 0 || c.Borrow.DefaultDays > c.Borrow.MaxDays:
		return fmt.Errorf("borrow default days must be between 1 and %d", c.Borrow.MaxDays)
	case c.Overdue.Interval <= 0:
		return errors.New("overdue interval must be positive")
	}

	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage local dir is required")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// env values arrive as one comma separated string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
