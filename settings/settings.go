// Package settings provides Viper-based configuration loading for the Quizler server.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GamesConfig holds defaults applied to every game.
type GamesConfig struct {
	// QuizDir is the directory holding quiz bank files.
	QuizDir string `mapstructure:"quiz_dir"`
	// MaxPlayers caps games whose quiz sets no limit. Zero means unlimited.
	MaxPlayers int `mapstructure:"max_players"`
	// SyncInterval is the period of TimeSync broadcasts.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	// FinishGrace keeps a finished game alive so clients can show final scores.
	FinishGrace time.Duration `mapstructure:"finish_grace"`
	// IdleTimeout closes games nobody joins. Zero disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// AdmitTimeout bounds how long a connection waits for admission.
	AdmitTimeout time.Duration `mapstructure:"admit_timeout"`
}

// NgrokConfig holds optional public tunnel settings.
type NgrokConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"auth_token"`
	Domain    string `mapstructure:"domain"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Games   GamesConfig   `mapstructure:"games"`
	Ngrok   NgrokConfig   `mapstructure:"ngrok"`
}

// Validate checks all configuration invariants and reports every violation.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGames(c.Games); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		errs = append(errs, "ngrok.auth_token must be set when ngrok.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGames(g GamesConfig) error {
	var errs []string
	if g.QuizDir == "" {
		errs = append(errs, "games.quiz_dir must not be empty")
	}
	if g.MaxPlayers < 0 {
		errs = append(errs, fmt.Sprintf("games.max_players must be >= 0, got %d", g.MaxPlayers))
	}
	if g.SyncInterval <= 0 {
		errs = append(errs, "games.sync_interval must be positive")
	}
	if g.FinishGrace <= 0 {
		errs = append(errs, "games.finish_grace must be positive")
	}
	if g.IdleTimeout < 0 {
		errs = append(errs, "games.idle_timeout must not be negative")
	}
	if g.AdmitTimeout <= 0 {
		errs = append(errs, "games.admit_timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from path, applies environment variable overrides
// and validates the result. An empty path uses defaults and the environment only.
//
// Environment variables use the QUIZLER_ prefix with "." replaced by "_"
// (QUIZLER_SERVER_PORT). PORT and NGROK_AUTHTOKEN are honoured as well.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("QUIZLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "QUIZLER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("binding env: %w", err)
	}
	if err := v.BindEnv("ngrok.auth_token", "QUIZLER_NGROK_AUTH_TOKEN", "NGROK_AUTHTOKEN"); err != nil {
		return Config{}, fmt.Errorf("binding env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("games.quiz_dir", "quizzes")
	v.SetDefault("games.max_players", 50)
	v.SetDefault("games.sync_interval", "1s")
	v.SetDefault("games.finish_grace", "30s")
	v.SetDefault("games.idle_timeout", "30m")
	v.SetDefault("games.admit_timeout", "5s")

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.auth_token", "")
	v.SetDefault("ngrok.domain", "")
}
