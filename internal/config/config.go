package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
		LogFile  string `mapstructure:"log_file"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Redis struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`

	// Seed, when set, replaces Postgres with a YAML file of projects and intercepts.
	Seed struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"seed"`

	SDK SDK `mapstructure:"sdk"`
}

// SDK is the client side of the sandbox: where the service lives and
// which brand, project and intercept the screen exercises.
type SDK struct {
	Endpoint          string        `mapstructure:"endpoint"`
	BrandID           string        `mapstructure:"brand_id"`
	ProjectID         string        `mapstructure:"project_id"`
	InterceptID       string        `mapstructure:"intercept_id"`
	TestPropertyKey   string        `mapstructure:"test_property_key"`
	TestPropertyValue string        `mapstructure:"test_property_value"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	Language          string        `mapstructure:"language"`
}

// Load reads configs/application.yaml (optional) with APP_* env overrides.
func Load() Config {
	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFrom decodes configuration from v. An explicit file must exist;
// without one the default configs/application.yaml is optional.
func LoadFrom(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("application")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		_ = v.ReadInConfig() // optional; env can fully configure
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	validate(&cfg)
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_file", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db_name", "intercepts")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("listener.channel", "")
	v.SetDefault("listener.reconnect_seconds", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("seed.path", "")
	v.SetDefault("sdk.endpoint", "http://localhost:8080")
	v.SetDefault("sdk.brand_id", "qcorpeu")
	v.SetDefault("sdk.project_id", "ZN_AjrGvOvcxpMpjwJ")
	v.SetDefault("sdk.intercept_id", "SI_bQTjH716jE5OOCq")
	v.SetDefault("sdk.test_property_key", "test")
	v.SetDefault("sdk.test_property_value", "sdkTest")
	v.SetDefault("sdk.request_timeout", "5s")
	v.SetDefault("sdk.language", "en")
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 10
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	if c.SDK.RequestTimeout <= 0 {
		c.SDK.RequestTimeout = 5 * time.Second
	}
	if c.SDK.Language == "" {
		c.SDK.Language = "en"
	}
	c.SDK.Endpoint = strings.TrimRight(c.SDK.Endpoint, "/")
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }
