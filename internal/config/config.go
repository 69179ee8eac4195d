package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type APIConfig struct {
	Environment              string   `mapstructure:"environment"`
	Port                     string   `mapstructure:"port"`
	BaseURL                  string   `mapstructure:"base_url"`
	JWTSigningKey            string   `mapstructure:"jwt_signing_key"`
	AllowedCORSDomains       []string `mapstructure:"allowed_cors_domains"`
	RegistrationCutoffHours  int      `mapstructure:"registration_cutoff_hours"`
	ReconcileIntervalMinutes int      `mapstructure:"reconcile_interval_minutes"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Load reads the YAML config file and overlays environment variables
// (API_PORT, POSTGRES_HOST, ...). The file is watched so config changes are
// picked up without a restart.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := v.Unmarshal(conf); err != nil {
			zap.L().Warn("failed to reload config", zap.String("file", e.Name), zap.Error(err))

			return
		}

		zap.L().Info("config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return conf, nil
}
