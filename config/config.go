package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Bet      BetConfig      `mapstructure:"bet"`
	Settings SettingsConfig `mapstructure:"settings"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress string          `mapstructure:"http_address"`
	RPCAddress  string          `mapstructure:"rpc_address"`
	Metrics     bool            `mapstructure:"metrics"`
	WebSocket   WebSocketConfig `mapstructure:"ws"`
}

type WebSocketConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type DatabaseConfig struct {
	Driver          string         `mapstructure:"driver"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
	SQLite          SQLiteConfig   `mapstructure:"sqlite"`
	MaxOpenConns    int            `mapstructure:"max_open_conns"`
	MaxIdleConns    int            `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration  `mapstructure:"conn_max_lifetime"`
	LogLevel        string         `mapstructure:"log_level"`
	SlowThreshold   time.Duration  `mapstructure:"slow_threshold"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig selects how connection tokens are turned into identities.
// Mode "http" calls an external auth service, "static" uses Tokens.
type AuthConfig struct {
	Mode        string        `mapstructure:"mode"`
	URL         string        `mapstructure:"url"`
	AdminSecret string        `mapstructure:"admin_secret"`
	Tokens      []StaticToken `mapstructure:"tokens"`
}

type StaticToken struct {
	Token  string `mapstructure:"token"`
	UserID uint   `mapstructure:"user_id"`
	Email  string `mapstructure:"email"`
	Role   string `mapstructure:"role"`
}

type LedgerConfig struct {
	InitialBalance string `mapstructure:"initial_balance"`
}

// BetConfig holds the values the bet settings row is created with.
type BetConfig struct {
	MinBet string `mapstructure:"min_bet"`
	MaxBet string `mapstructure:"max_bet"`
	Step   string `mapstructure:"step"`
}

type SettingsConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", "127.0.0.1:8081")
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.ws.send_buffer", 64)
	v.SetDefault("server.ws.write_wait", 10*time.Second)
	v.SetDefault("server.ws.pong_wait", 60*time.Second)
	v.SetDefault("server.ws.max_message_size", 4096)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "guessduel")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.sqlite.path", "guessduel.db")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("database.slow_threshold", time.Second)

	v.SetDefault("auth.mode", "static")

	v.SetDefault("ledger.initial_balance", "1000.00")

	v.SetDefault("bet.min_bet", "10.00")
	v.SetDefault("bet.max_bet", "1000.00")
	v.SetDefault("bet.step", "5.00")

	v.SetDefault("settings.refresh_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// defaults and GUESS_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("guess")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
