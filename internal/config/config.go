package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendOpenCL = "opencl"
	BackendHost   = "host"
)

// Config holds every setting that is not a positional argument.
type Config struct {
	Backend    string        `mapstructure:"backend"`
	Kernels    string        `mapstructure:"kernels"`
	LocalSize  int           `mapstructure:"local_size"`
	CPUProfile string        `mapstructure:"cpu_profile"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendOpenCL,
		LocalSize: 1,
		Logging: LoggingConfig{
			Level:   "warn",
			Console: true,
		},
	}
}

// flagKeys maps config keys to the flag names that override them.
var flagKeys = map[string]string{
	"backend":       "backend",
	"kernels":       "kernels",
	"local_size":    "local-size",
	"cpu_profile":   "cpuprofile",
	"logging.level": "log-level",
	"logging.file":  "log-file",
}

// Load layers defaults, the optional YAML file cfgFile, BLENDCL_* environment
// variables and any flags in flags that were set, in increasing precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetEnvPrefix("BLENDCL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", cfgFile)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "binding flag --%s", name)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenCL, BackendHost:
	default:
		return fmt.Errorf("backend must be one of: %v", []string{BackendOpenCL, BackendHost})
	}
	if c.LocalSize < 0 {
		return fmt.Errorf("local_size must not be negative, got %d", c.LocalSize)
	}
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("kernels", cfg.Kernels)
	v.SetDefault("local_size", cfg.LocalSize)
	v.SetDefault("cpu_profile", cfg.CPUProfile)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
