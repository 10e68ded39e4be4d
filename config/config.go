// Package config loads runtime settings from defaults, an optional
// caissa.yaml, and CAISSA_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	// Threads is the number of search threads; below 2 disables lazy
	// SMP.
	Threads int `mapstructure:"threads"`
	// TTMemFraction is the fraction of system memory the transposition
	// table takes when first sized.
	TTMemFraction float64 `mapstructure:"tt-mem-fraction"`
	// ModelPath points at an evaluation weight file. Empty means the
	// embedder supplies a model by other means.
	ModelPath string `mapstructure:"model-path"`
	LogLevel  string `mapstructure:"log-level"`
}

// Load reads settings. Extra paths are searched for caissa.yaml before
// the working directory; a missing file is not an error, a malformed
// one is.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetDefault("threads", max(1, runtime.NumCPU()-1))
	v.SetDefault("tt-mem-fraction", 0.25)
	v.SetDefault("model-path", "")
	v.SetDefault("log-level", "info")

	v.SetConfigName("caissa")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("caissa")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading caissa.yaml: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// ZerologLevel translates LogLevel, falling back to info when the
// string does not parse.
func (c *Config) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
