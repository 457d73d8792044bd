package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Server   ServerConfig   `mapstructure:"server"`
		Redis    RedisConfig    `mapstructure:"redis"`
		Mongo    MongoConfig    `mapstructure:"mongo"`
		Identity IdentityConfig `mapstructure:"identity"`
		Limits   LimitsConfig   `mapstructure:"limits"`
		Relay    RelayConfig    `mapstructure:"relay"`
		Catalog  CatalogConfig  `mapstructure:"catalog"`
		Debug    bool           `mapstructure:"debug"`
	}

	ServerConfig struct {
		Addr string `mapstructure:"addr"`
	}

	RedisConfig struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	MongoConfig struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	}

	IdentityConfig struct {
		IdleTTL   time.Duration `mapstructure:"idle_ttl"`
		HardCap   time.Duration `mapstructure:"hard_cap"`
		MetricTTL time.Duration `mapstructure:"metric_ttl"`
	}

	LimitsConfig struct {
		RegistrationWindow    time.Duration `mapstructure:"registration_window"`
		RegistrationThreshold int64         `mapstructure:"registration_threshold"`
		MessageWindow         time.Duration `mapstructure:"message_window"`
		MessageThreshold      int64         `mapstructure:"message_threshold"`
		MaxContentBytes       int           `mapstructure:"max_content_bytes"`
	}

	RelayConfig struct {
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		SendBuffer        int           `mapstructure:"send_buffer"`
	}

	CatalogConfig struct {
		SpotifyClientID     string `mapstructure:"spotify_client_id"`
		SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
		YouTubeAPIKey       string `mapstructure:"youtube_api_key"`
	}
)

// Load reads config.yaml from the working directory when present and applies
// ANONYM_* environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":9090")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "anonym")
	v.SetDefault("identity.idle_ttl", 120*time.Minute)
	v.SetDefault("identity.hard_cap", 24*time.Hour)
	v.SetDefault("identity.metric_ttl", 2*time.Hour)
	v.SetDefault("limits.registration_window", time.Hour)
	v.SetDefault("limits.registration_threshold", 5)
	v.SetDefault("limits.message_window", time.Minute)
	v.SetDefault("limits.message_threshold", 30)
	v.SetDefault("limits.max_content_bytes", 100_000)
	v.SetDefault("relay.heartbeat_interval", 25*time.Second)
	v.SetDefault("relay.send_buffer", 32)
	v.SetDefault("catalog.spotify_client_id", "")
	v.SetDefault("catalog.spotify_client_secret", "")
	v.SetDefault("catalog.youtube_api_key", "")
	v.SetDefault("debug", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ANONYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
