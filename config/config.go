// Package config provides Viper-based configuration for storefront
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STOREFRONT_BACKEND_BASE_URL.
const EnvPrefix = "STOREFRONT"

// Config represents the complete storefront configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Identity IdentityConfig `mapstructure:"identity"`
	Store    StoreConfig    `mapstructure:"store"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Server   ServerConfig   `mapstructure:"server"`
	Stub     StubConfig     `mapstructure:"stub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
}

// BackendConfig points at the REST backend and the payment gateway
type BackendConfig struct {
	BaseURL           string `mapstructure:"base_url" validate:"required,url"`
	PaymentGatewayURL string `mapstructure:"payment_gateway_url" validate:"required,url"`
}

// IdentityConfig selects who issues tokens for password logins
type IdentityConfig struct {
	Provider               string `mapstructure:"provider" validate:"oneof=drf kratos"`
	KratosURL              string `mapstructure:"kratos_url" validate:"required_if=Provider kratos"`
	KratosTokenizeTemplate string `mapstructure:"kratos_tokenize_template"`
}

// StoreConfig selects the key-value backing for tokens and the cart
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=file redis memory"`
	Path        string `mapstructure:"path" validate:"required_if=Driver file"`
	RedisURL    string `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type TimeoutsConfig struct {
	Request time.Duration `mapstructure:"request" validate:"gt=0"`
}

// OTPConfig limits how often a code may be resent
type OTPConfig struct {
	ResendInterval time.Duration `mapstructure:"resend_interval" validate:"gt=0"`
	ResendBurst    int           `mapstructure:"resend_burst" validate:"min=1"`
}

// ServerConfig contains settings of the local storefront API
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// StubConfig contains settings of the development backend
type StubConfig struct {
	Addr       string        `mapstructure:"addr" validate:"required"`
	AccessTTL  time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" validate:"gt=0"`
	Keys       int           `mapstructure:"keys" validate:"min=1"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// Load reads configuration from defaults, the config file, envFile and
// environment variables, in increasing order of precedence. A missing
// config file or env file is not an error.
func Load(cfgFile, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".storefront")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/storefront")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://127.0.0.1:8000/api/")
	v.SetDefault("backend.payment_gateway_url", "https://api.zarinpal.com/pg")

	v.SetDefault("identity.provider", "drf")
	v.SetDefault("identity.kratos_url", "")
	v.SetDefault("identity.kratos_tokenize_template", "jwt_v1")

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", defaultStatePath())
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.redis_prefix", "storefront")

	v.SetDefault("timeouts.request", 15*time.Second)

	v.SetDefault("otp.resend_interval", time.Minute)
	v.SetDefault("otp.resend_burst", 1)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("stub.addr", ":8000")
	v.SetDefault("stub.access_ttl", 5*time.Minute)
	v.SetDefault("stub.refresh_ttl", 24*time.Hour)
	v.SetDefault("stub.keys", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-state.json"
	}
	return filepath.Join(dir, "storefront", "state.json")
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("invalid %s: %v (must be one of %s)", field, fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("invalid %s: %v is not a URL", field, fe.Value())
	default:
		return fmt.Sprintf("invalid %s: %v", field, fe.Value())
	}
}
