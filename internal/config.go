package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type PageDbConfig struct {
	Storage struct {
		Dir      string `mapstructure:"dir"`
		PoolSize int    `mapstructure:"pool_size"`
		Policy   string `mapstructure:"policy"`
	} `mapstructure:"storage"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// LoadConfig reads a yaml config file and fills in defaults for anything
// not set.
func LoadConfig(path string) (*PageDbConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.pool_size", 10)
	v.SetDefault("storage.policy", "lru")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg PageDbConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns the configuration used when no config file is given.
func DefaultConfig() *PageDbConfig {
	var cfg PageDbConfig
	cfg.Storage.Dir = "./data"
	cfg.Storage.PoolSize = 10
	cfg.Storage.Policy = "lru"
	cfg.Log.Level = "info"
	return &cfg
}
