package config

import "time"

type Config struct {
	API       APIConfig
	Transport TransportConfig
	Session   SessionConfig
	Log       LogConfig
}

type APIConfig struct {
	BaseURL string        `mapstructure:"baseUrl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TransportConfig struct {
	URL               string        `mapstructure:"url"`
	HandshakeTimeout  time.Duration `mapstructure:"handshakeTimeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnectInterval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout"`
}

type SessionConfig struct {
	StorePath string `mapstructure:"storePath"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
