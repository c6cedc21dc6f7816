package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/voltagedrop"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Calc      CalcConfig      `mapstructure:"calc"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	TLSCert   string `mapstructure:"tls_cert"`
	TLSKey    string `mapstructure:"tls_key"`
	StaticDir string `mapstructure:"static_dir"`
	UploadDir string `mapstructure:"upload_dir"`
	LogLevel  string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type AuthConfig struct {
	TokenKey          string `mapstructure:"token_key"`
	AdminLogin        string `mapstructure:"admin_login"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

// CalcConfig overrides calculator policy. Zero values keep the built-in constants.
type CalcConfig struct {
	MotorSafetyFactor    float64 `mapstructure:"motor_safety_factor"`
	HeaterSafetyFactor   float64 `mapstructure:"heater_safety_factor"`
	MixedSafetyFactor    float64 `mapstructure:"mixed_safety_factor"`
	CapacityStepKVA      float64 `mapstructure:"capacity_step_kva"`
	Resistivity          float64 `mapstructure:"resistivity"`
	DropThresholdPercent float64 `mapstructure:"drop_threshold_percent"`
}

// Load reads .env (if any), then config.yaml from dir (if any), then the
// environment. Nested keys map to env vars with "." replaced by "_".
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(dir + "/config")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// legacy variable names used by existing deployments
	v.BindEnv("auth.token_key", "TOKEN_KEY", "AUTH_TOKEN_KEY")
	v.BindEnv("telegram.token", "TOKEN_BOT", "TELEGRAM_TOKEN")
	v.BindEnv("telegram.admin_chat_id", "ADMIN_PEER_ID", "TELEGRAM_ADMIN_CHAT_ID")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("server.upload_dir", "./static/uploads")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "user=postgres dbname=postgres password=password sslmode=disable")

	v.SetDefault("auth.admin_login", "admin")
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("rate_limit.rps", 1.0)
	v.SetDefault("rate_limit.burst", 3)

	v.SetDefault("telegram.admin_chat_id", 0)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "voltaris/leads/new")

	v.SetDefault("calc.motor_safety_factor", 0.0)
	v.SetDefault("calc.heater_safety_factor", 0.0)
	v.SetDefault("calc.mixed_safety_factor", 0.0)
	v.SetDefault("calc.capacity_step_kva", 0.0)
	v.SetDefault("calc.resistivity", 0.0)
	v.SetDefault("calc.drop_threshold_percent", 0.0)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be > 0")
	}
	return nil
}

// PowerPolicy merges configured overrides into the default sizing policy.
func (c CalcConfig) PowerPolicy() power.Config {
	p := power.DefaultConfig()
	if c.MotorSafetyFactor != 0 {
		p.MotorSafetyFactor = c.MotorSafetyFactor
	}
	if c.HeaterSafetyFactor != 0 {
		p.HeaterSafetyFactor = c.HeaterSafetyFactor
	}
	if c.MixedSafetyFactor != 0 {
		p.MixedSafetyFactor = c.MixedSafetyFactor
	}
	if c.CapacityStepKVA != 0 {
		p.CapacityStepKVA = c.CapacityStepKVA
	}
	return p
}

func (c CalcConfig) VoltageDropPolicy() voltagedrop.Config {
	p := voltagedrop.DefaultConfig()
	if c.Resistivity != 0 {
		p.Resistivity = c.Resistivity
	}
	if c.DropThresholdPercent != 0 {
		p.DropThresholdPercent = c.DropThresholdPercent
	}
	return p
}
