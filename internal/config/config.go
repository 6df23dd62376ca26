package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`
	// AdminToken gates the admin endpoints; empty leaves them open.
	AdminToken string `mapstructure:"admin_token"`
	// ArchivePath is the sqlite file for the event archive; empty disables
	// archival.
	ArchivePath           string        `mapstructure:"archive_path"`
	TickInterval          time.Duration `mapstructure:"tick_interval"`
	MaxClientInactiveTime time.Duration `mapstructure:"max_client_inactive_time"`
	RandomizeDeathMessage bool          `mapstructure:"randomize_death_message"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("archive_path", "")
	v.SetDefault("tick_interval", "100ms")
	v.SetDefault("max_client_inactive_time", "5m")
	v.SetDefault("randomize_death_message", true)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}
