package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the CLI configuration loaded from flags, environment
// variables, .env files, and the optional config file.
type Config struct {
	// ConfigFile is the config file actually used, if any.
	ConfigFile string

	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store.
	DatabaseURL string

	// ProvidersFile is the YAML provider registry path.
	ProvidersFile string

	// RoutingURL is the optional routing service endpoint used to resolve
	// between-provider conflicts.
	RoutingURL string

	Workers          int
	RequestTimeout   time.Duration
	FetchTimeout     time.Duration
	BatchSize        int
	UpdateOnConflict bool

	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from all sources in order of precedence:
// command-line flags (handled by cobra), environment variables, .env
// files, the config file (~/.stationsync.yaml), and defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	viper.SetDefault("providers", "providers.yaml")
	viper.SetDefault("workers", 8)
	viper.SetDefault("request_timeout", 30*time.Second)
	viper.SetDefault("fetch_timeout", 5*time.Minute)
	viper.SetDefault("batch_size", 200)
	viper.SetDefault("update_on_conflict", true)

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".stationsync")
		}
	}
	_ = viper.ReadInConfig()

	config := &Config{
		ConfigFile: viper.ConfigFileUsed(),

		DatabaseURL:   viper.GetString("database_url"),
		ProvidersFile: viper.GetString("providers"),
		RoutingURL:    viper.GetString("routing_url"),

		Workers:          viper.GetInt("workers"),
		RequestTimeout:   viper.GetDuration("request_timeout"),
		FetchTimeout:     viper.GetDuration("fetch_timeout"),
		BatchSize:        viper.GetInt("batch_size"),
		UpdateOnConflict: viper.GetBool("update_on_conflict"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
	}
	return config, nil
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
