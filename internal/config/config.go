package config

import (
	"log"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type FeaturesConfig struct {
	DrawerEnabled bool `mapstructure:"drawer_enabled"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type DispatchConfig struct {
	// Enabled turns on the outbound log notifier. Disabled dispatch still
	// records history rows.
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	DatabaseURL   string           `mapstructure:"database_url"`
	StorageDriver string           `mapstructure:"storage_driver"`
	ServerPort    string           `mapstructure:"server_port"`
	JWTSecret     string           `mapstructure:"jwt_secret"`
	LogLevel      string           `mapstructure:"log_level"`
	CORS          CORSConfig       `mapstructure:"cors"`
	Features      FeaturesConfig   `mapstructure:"features"`
	Pagination    PaginationConfig `mapstructure:"pagination"`
	Dispatch      DispatchConfig   `mapstructure:"dispatch"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	config, err := LoadFrom("")
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return config
}

// LoadFrom reads the config file at path, or searches . and ./config when
// path is empty. NOTIFICATIONS_* environment variables override file values.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Look for config in the current directory and ./config
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("NOTIFICATIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage_driver", StorageDriverPostgres)
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("features.drawer_enabled", false)
	v.SetDefault("pagination.default_limit", 20)
	v.SetDefault("pagination.max_limit", 200)
	v.SetDefault("dispatch.enabled", true)
	// AutomaticEnv only sees keys viper already knows about.
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if config.JWTSecret == "" {
		return nil, errors.New("jwt_secret must be set")
	}
	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	switch config.StorageDriver {
	case StorageDriverPostgres:
		if config.DatabaseURL == "" {
			return nil, errors.New("database_url must be set for the postgres storage driver")
		}
	case StorageDriverMemory:
	default:
		return nil, errors.Errorf("unknown storage_driver %q", config.StorageDriver)
	}
	if config.Pagination.MaxLimit < config.Pagination.DefaultLimit {
		config.Pagination.MaxLimit = config.Pagination.DefaultLimit
	}

	return &config, nil
}
