package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress   string `mapstructure:"http_address"`
	RPCAddress    string `mapstructure:"rpc_address"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	MetricsPath   string `mapstructure:"metrics_path"`
}

// GameConfig holds the room defaults. TimeBetweenRounds is used when a
// wave-rush config leaves it at zero.
type GameConfig struct {
	MaxPlayers        int           `mapstructure:"max_players"`
	TimeBetweenRounds int           `mapstructure:"default_time_between_rounds"`
	TransitionGrace   time.Duration `mapstructure:"transition_grace"`
	DefaultWords      []string      `mapstructure:"default_words"`
	EventsPerSecond   float64       `mapstructure:"events_per_second"`
	EventBurst        int           `mapstructure:"event_burst"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultWords is the word list a freshly created room starts with.
var DefaultWords = []string{"about", "after", "again", "animal", "around", "before"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":3000")
	v.SetDefault("server.rpc_address", "127.0.0.1:3001")
	v.SetDefault("server.allowed_origin", "http://localhost:5173")
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.default_time_between_rounds", 5)
	v.SetDefault("game.transition_grace", time.Second)
	v.SetDefault("game.default_words", DefaultWords)
	v.SetDefault("game.events_per_second", 30)
	v.SetDefault("game.event_burst", 60)

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path. Environment variables override file
// values (SERVER_HTTP_ADDRESS overrides server.http_address). A missing file
// is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
