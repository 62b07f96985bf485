package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/cligate/internal/clidocs"
	"github.com/ppiankov/cligate/internal/model"
)

// EnvPrefix is prepended to every configuration key read from the
// environment: cli.bin becomes CLIGATE_CLI_BIN.
const EnvPrefix = "CLIGATE"

// Transports accepted by the serve command.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// legacyEnv maps keys to the environment names used by earlier nebius MCP
// server deployments. The prefixed name wins when both are set.
var legacyEnv = map[string]string{
	"safe_mode": "SAFE_MODE",
	"timeout":   "NEBIUS_MCP_TIMEOUT",
	"transport": "NEBIUS_MCP_TRANSPORT",
	"cli.bin":   "NEBIUS_CLI_BIN",
	"cli.name":  "NEBIUS_CLI_NAME",
}

// Config is the resolved process configuration.
type Config struct {
	// SafeMode is the raw setting; Mode is the parsed value.
	SafeMode       string           `mapstructure:"-"`
	Mode           model.SafetyMode `mapstructure:"-"`
	CLI            CLIConfig        `mapstructure:"cli"`
	Timeout        int              `mapstructure:"timeout"` // seconds
	Transport      string           `mapstructure:"transport"`
	Addr           string           `mapstructure:"addr"`
	Rules          string           `mapstructure:"rules"`
	Log            LogConfig        `mapstructure:"log"`
	ServiceGroups  []string         `mapstructure:"service_groups"`
	SystemServices []string         `mapstructure:"system_services"`
}

// CLIConfig identifies the wrapped CLI.
type CLIConfig struct {
	Name string `mapstructure:"name"`
	Bin  string `mapstructure:"bin"`
}

// LogConfig logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%q: %s", e.Key, e.Value, e.Reason)
}

// DefaultConfig returns config with defaults.
func DefaultConfig() *Config {
	return &Config{
		SafeMode:       "true",
		Mode:           model.Safe,
		CLI:            CLIConfig{Name: "nebius", Bin: defaultBin()},
		Timeout:        300,
		Transport:      TransportStdio,
		Addr:           "127.0.0.1:8080",
		Log:            LogConfig{Level: "info"},
		ServiceGroups:  append([]string{}, clidocs.DefaultServiceGroups...),
		SystemServices: append([]string{}, clidocs.DefaultSystemServices...),
	}
}

func defaultBin() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nebius"
	}
	return filepath.Join(home, ".nebius", "bin", "nebius")
}

// ConfigDir returns the cligate config directory.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cligate")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Options selects configuration sources for Load.
type Options struct {
	// File is an explicit config file; it must exist. Empty means
	// ConfigPath, which is optional.
	File string
	// EnvFile is a dotenv file loaded into the environment before reading
	// variables. Empty means ".env"; a missing file is ignored.
	EnvFile string
	// Flags binds command-line flags to configuration keys. A flag only
	// takes effect when set explicitly, and then wins over every other
	// source.
	Flags map[string]*pflag.Flag
}

// Load resolves configuration from defaults, the config file, the dotenv
// file, the environment and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	def := DefaultConfig()
	v := viper.New()
	v.SetDefault("safe_mode", def.SafeMode)
	v.SetDefault("cli.name", def.CLI.Name)
	v.SetDefault("cli.bin", def.CLI.Bin)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("transport", def.Transport)
	v.SetDefault("addr", def.Addr)
	v.SetDefault("rules", "")
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("service_groups", def.ServiceGroups)
	v.SetDefault("system_services", def.SystemServices)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	for key, flag := range opts.Flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	path := opts.File
	if path == "" {
		if _, err := os.Stat(ConfigPath()); err == nil {
			path = ConfigPath()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToFieldsHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.SafeMode = v.GetString("safe_mode")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringToFieldsHook splits list values given as a single string, as they
// are in the environment, on commas and whitespace.
func stringToFieldsHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		return strings.FieldsFunc(data.(string), func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		}), nil
	}
}

// Validate parses SafeMode and checks value ranges. Errors are
// *ConfigError.
func (c *Config) Validate() error {
	mode, err := model.ParseSafetyMode(c.SafeMode)
	if err != nil {
		return &ConfigError{Key: "safe_mode", Value: c.SafeMode, Reason: "expected true or false"}
	}
	c.Mode = mode

	if strings.TrimSpace(c.CLI.Name) == "" {
		return &ConfigError{Key: "cli.name", Value: c.CLI.Name, Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.CLI.Bin) == "" {
		return &ConfigError{Key: "cli.bin", Value: c.CLI.Bin, Reason: "must not be empty"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Key: "timeout", Value: fmt.Sprint(c.Timeout), Reason: "must be a positive number of seconds"}
	}

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return &ConfigError{Key: "transport", Value: c.Transport, Reason: "must be stdio or http"}
	}
	if c.Transport == TransportHTTP && strings.TrimSpace(c.Addr) == "" {
		return &ConfigError{Key: "addr", Value: c.Addr, Reason: "required for http transport"}
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "":
		level = "info"
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Key: "log.level", Value: c.Log.Level, Reason: "must be one of trace, debug, info, warn, error"}
	}
	c.Log.Level = level

	return nil
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
