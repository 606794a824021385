// Package config loads daemon settings: defaults, then an optional config
// file, then BONUSDRIVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/and161185/bonusdrive/internal/coordinator"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/model"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "BONUSDRIVE"

// Bootstrap is an entry created at startup when it is not configured yet.
type Bootstrap struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	BaseURL   string `mapstructure:"base_url"`
	PhotonURL string `mapstructure:"photon_url"`
}

// Config holds daemon settings.
type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	GRPCReflection bool          `mapstructure:"grpc_reflection"`
	DSN            string        `mapstructure:"dsn"` // empty keeps everything in memory
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisStateTTL  time.Duration `mapstructure:"redis_state_ttl"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	SecretKey      string        `mapstructure:"secret_key"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ExecutorSize   int           `mapstructure:"executor_size"`
	VendorTimeout  time.Duration `mapstructure:"vendor_timeout"`
	TripLogSize    int           `mapstructure:"trip_log_size"`
	Bootstrap      Bootstrap     `mapstructure:"bootstrap"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("grpc_reflection", false)
	v.SetDefault("dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_state_ttl", time.Duration(0))
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("secret_key", "")
	v.SetDefault("poll_interval", coordinator.DefaultInterval)
	v.SetDefault("executor_size", executor.DefaultSize)
	v.SetDefault("vendor_timeout", 30*time.Second)
	v.SetDefault("trip_log_size", 200)
	v.SetDefault("bootstrap.email", "")
	v.SetDefault("bootstrap.password", "")
	v.SetDefault("bootstrap.base_url", model.DefaultBaseURL)
	v.SetDefault("bootstrap.photon_url", "")
}

// Load reads the configuration. path may be empty.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the daemon cannot run with.
func (c Config) Validate() error {
	var problems []error
	if c.JWTSecret == "" {
		problems = append(problems, errors.New("jwt_secret is required"))
	}
	if c.DSN != "" && c.SecretKey == "" {
		problems = append(problems, errors.New("secret_key is required with a database"))
	}
	if c.PollInterval <= 0 {
		problems = append(problems, errors.New("poll_interval must be positive"))
	}
	if c.Bootstrap.Email != "" && c.Bootstrap.Password == "" {
		problems = append(problems, errors.New("bootstrap.password is required with bootstrap.email"))
	}
	return errors.Join(problems...)
}
