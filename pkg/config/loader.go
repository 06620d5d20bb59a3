package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("api.baseUrl", "http://localhost:8080/api/v1")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("transport.url", "ws://localhost:8080/ws")
	v.SetDefault("transport.handshakeTimeout", "10s")
	v.SetDefault("transport.reconnectInterval", "5s")
	v.SetDefault("transport.heartbeatInterval", "4s")
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("session.storePath", "")
	v.SetDefault("log.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory
	v.AddConfigPath("$HOME/.livechat")

	// 3. Set up environment variable handling
	v.SetEnvPrefix("LIVECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
